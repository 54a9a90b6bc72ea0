package models

// MConfig Structure
type MConfig struct {
	Name        string            `yaml:"name"`
	Host        string            `yaml:"host"`
	Port        int               `yaml:"port"`
	LogLevel    string            `yaml:"log_level"`
	GrpcHost    string            `yaml:"grpc_host"`
	GrpcPort    int               `yaml:"grpc_port"`
	CorsOrigins []string          `yaml:"cors_origins"`
	StaticDir   string            `yaml:"static_dir"`
	Storage     MStorageConfig    `yaml:"storage"`
	Network     MNetworkConfig    `yaml:"network"`
	DataSource  MDataSourceConfig `yaml:"data_source"`
	Auth        MAuthConfig       `yaml:"auth"`
	Market      MMarketConfig     `yaml:"market"`
	Client      MClientConfig     `yaml:"client"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	DBSchema           string `yaml:"db_schema"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

// MDataSourceConfig holds the upstream market-data endpoints.
type MDataSourceConfig struct {
	FinnhubBaseURL string `yaml:"finnhub_base_url"`
	FinnhubAPIKey  string `yaml:"finnhub_api_key"`
	YahooBaseURL   string `yaml:"yahoo_base_url"`
	CandleRange    string `yaml:"candle_range"`
	CandleInterval string `yaml:"candle_interval"`
}

type MAuthConfig struct {
	Provider     string            `yaml:"provider"` // supabase | static
	SupabaseURL  string            `yaml:"supabase_url"`
	SupabaseKey  string            `yaml:"supabase_anon_key"`
	StaticTokens map[string]string `yaml:"static_tokens"` // token -> user id
}

type MMarketConfig struct {
	Indices      []MIndexConfig `yaml:"indices"`
	RefreshCron  string         `yaml:"refresh_cron"`
	NewsCron     string         `yaml:"news_cron"`
	NewsCategory string         `yaml:"news_category"`
	HealthCron   string         `yaml:"health_cron"`
}

type MIndexConfig struct {
	Key    string `yaml:"key"`
	Symbol string `yaml:"symbol"`
}

// MClientConfig is read by the terminal dashboard.
type MClientConfig struct {
	APIURL          string `yaml:"api_url"`
	DebounceMillis  int    `yaml:"debounce_ms"`
	Timezone        string `yaml:"timezone"`
	PreferencesPath string `yaml:"preferences_path"`
	LogPath         string `yaml:"log_path"`
}
