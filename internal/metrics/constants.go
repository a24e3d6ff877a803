package metrics

// HTTP metric names
const (
	MetricNameHTTPRequestsTotal    = "gacha_http_requests_total"
	MetricNameHTTPRequestDuration  = "gacha_http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "gacha_http_requests_in_flight"
)

// Business metric names
const (
	MetricNameDraws          = "gacha_draws_total"
	MetricNameHardPity       = "gacha_hard_pity_total"
	MetricNameFallThrough    = "gacha_fall_through_total"
	MetricNameAdminDenials   = "gacha_admin_denials_total"
	MetricNameCatalogReloads = "gacha_catalog_reloads_total"
)

// HTTP metric help text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"
)

// Business metric help text
const (
	HelpTextDraws          = "Draw outcomes by banner and tier"
	HelpTextHardPity       = "Draws decided by a hard pity guarantee"
	HelpTextFallThrough    = "Draws where no tier claimed the roll"
	HelpTextAdminDenials   = "Rejected capability checks by error code"
	HelpTextCatalogReloads = "Seed catalog reload attempts by result"
)

// Label names
const (
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
	LabelBanner = "banner"
	LabelTier   = "tier"
	LabelReason = "reason"
	LabelResult = "result"
)

// Result label values
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// HTTPLatencyBuckets covers sub-millisecond reads through slow simulations.
var HTTPLatencyBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
