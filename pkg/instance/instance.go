// Package instance names the running process for lock ownership and logs.
package instance

import "os"

// ID prefers WORKER_ID, then the container hostname.
func ID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "storefront-0"
}
