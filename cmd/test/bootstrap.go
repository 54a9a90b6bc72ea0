package main

import (
	"fmt"
	"net"
	"path/filepath"

	"stock-dashboard/src/config"
	"stock-dashboard/src/models"
)

// smokeToken is the static bearer token the smoke user signs in with.
const (
	smokeToken  = "smoke-token"
	smokeUserID = "smoke-user"
)

// -----------------------------------------------------------------------------

// bootstrapConfig loads the base config and points every external dependency
// at local stand-ins: the fake upstream, a throwaway sqlite file and free
// ports for HTTP and gRPC.
func bootstrapConfig(configPath, workDir, upstreamURL string) (*config.Config, error) {
	conf, err := config.NewConfig(configPath)
	if err != nil {
		return nil, err
	}

	httpPort, err := freePort()
	if err != nil {
		return nil, err
	}
	grpcPort, err := freePort()
	if err != nil {
		return nil, err
	}

	conf.Host = "127.0.0.1"
	conf.Port = httpPort
	conf.GrpcHost = "127.0.0.1"
	conf.GrpcPort = grpcPort

	conf.Storage = models.MStorageConfig{
		DBType:   "sqlite",
		DBPath:   filepath.Join(workDir, "wishlist.db"),
		DBSchema: "public",
	}
	conf.Network.Enabled = false
	conf.Network.Proxies = nil
	conf.Network.MaxRetries = 0

	conf.DataSource.FinnhubBaseURL = upstreamURL + "/finnhub"
	conf.DataSource.FinnhubAPIKey = upstreamKey
	conf.DataSource.YahooBaseURL = upstreamURL + "/yahoo"

	conf.Auth = models.MAuthConfig{
		Provider:     "static",
		StaticTokens: map[string]string{smokeToken: smokeUserID},
	}

	conf.Client.APIURL = fmt.Sprintf("http://%s:%d", conf.Host, conf.Port)
	conf.Client.DebounceMillis = 50
	conf.Client.PreferencesPath = filepath.Join(workDir, "prefs.yaml")
	conf.Client.Timezone = "America/New_York"

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("smoke config invalid: %w", err)
	}
	return conf, nil
}

// -----------------------------------------------------------------------------

func freePort() (int, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("no free port: %w", err)
	}
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port, nil
}
