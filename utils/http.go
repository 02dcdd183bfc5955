// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound pulls such as the scoring feed.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
