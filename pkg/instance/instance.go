package instance

import "os"

// GetID returns the process instance identifier used in logs and lock tokens.
func GetID() string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
