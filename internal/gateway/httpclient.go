package gateway

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/jolivier22/stlmanager/internal/config"
)

func newHTTPClient(cfg *config.Config) *http.Client {
	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

// newStreamClient is the transport used for the duplicate-detection stream.
// The overall request timeout is disabled there; a scan of a large collection
// legitimately outlives any fixed deadline, and teardown happens via context.
func newStreamClient(cfg *config.Config) *http.Client {
	c := newHTTPClient(cfg)
	c.Timeout = 0
	return c
}

func userAgent(cfg *config.Config) string {
	if cfg != nil && cfg.Server.UserAgent != "" {
		return cfg.Server.UserAgent
	}
	return fmt.Sprintf("stlman/%s (%s/%s)", versionString(), runtime.GOOS, runtime.GOARCH)
}

// versionString reports the build version injected by the main package.
func versionString() string {
	return defaultVersion
}

var defaultVersion = "dev"

// SetVersion records the build version used in the default User-Agent.
func SetVersion(v string) {
	if v != "" {
		defaultVersion = v
	}
}
