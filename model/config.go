package model

// PluginInstanceConfig names one configured instance of a capability plugin
// (a PlanSource or a TimesheetCompiler).
type PluginInstanceConfig struct {
	Plugin string         // registry key, e.g. "local", "billable"
	Name   string         // instance id, unique among its kind
	Config map[string]any // plugin-opaque config blob
}

// Config is the process-wide settings loaded once per invocation.
type Config struct {
	Timezone    string
	PlanSources []PluginInstanceConfig
	Compilers   []PluginInstanceConfig
	// SigningIDs maps a compiler instance name to the identities that should
	// sign timesheets it compiles.
	SigningIDs map[string][]string
}
