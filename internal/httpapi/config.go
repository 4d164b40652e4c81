package httpapi

const defaultMaxBodyBytes = 8 << 20

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Tasks carry base64 images, so the default is 8 MiB.
var maxBodyBytes int64 = defaultMaxBodyBytes

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// taskTimeout controls the maximum duration a /task request may run before timing out.
// Zero means no additional timeout beyond server/connection timeouts.
var taskTimeout = int64(0) // seconds

// SetTaskTimeoutSeconds sets the task timeout in seconds (0 disables).
func SetTaskTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	taskTimeout = sec
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
