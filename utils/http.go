// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the outbound workers (issuance intake, settlement dispatch).
var HTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}
