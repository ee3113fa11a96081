package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "panodraw.cfg.json"

// AnnotationConfig holds drawing thresholds and viewer polling.
type AnnotationConfig struct {
	CloseRadius       float64       `json:"closeRadius" mapstructure:"closeRadius"`
	MinPolygonPoints  int           `json:"minPolygonPoints" mapstructure:"minPolygonPoints"`
	MinFreehandPoints int           `json:"minFreehandPoints" mapstructure:"minFreehandPoints"`
	SimplifySpacing   float64       `json:"simplifySpacing" mapstructure:"simplifySpacing"`
	DefaultFOV        float64       `json:"defaultFov" mapstructure:"defaultFov"`
	ReadyAttempts     int           `json:"readyAttempts" mapstructure:"readyAttempts"`
	ReadyInterval     time.Duration `json:"readyInterval" mapstructure:"readyInterval"`
}

// ShapeStyle is one hotspot style.
type ShapeStyle struct {
	Color       uint32  `json:"color" mapstructure:"color"`
	FillAlpha   float64 `json:"fillAlpha" mapstructure:"fillAlpha"`
	BorderAlpha float64 `json:"borderAlpha" mapstructure:"borderAlpha"`
	BorderWidth float64 `json:"borderWidth" mapstructure:"borderWidth"`
	ZOrder      int     `json:"zorder" mapstructure:"zorder"`
}

// StyleConfig holds the polygon and freehand hotspot styles.
type StyleConfig struct {
	Polygon  ShapeStyle `json:"polygon" mapstructure:"polygon"`
	Freehand ShapeStyle `json:"freehand" mapstructure:"freehand"`
}

// OverlayConfig controls the frames sent to the page for drawing.
type OverlayConfig struct {
	FrameInterval time.Duration `json:"frameInterval" mapstructure:"frameInterval"`
	SendImage     bool          `json:"sendImage" mapstructure:"sendImage"`
}

// ViewerConfig holds the websocket relay to the viewer page.
type ViewerConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// MemoryConfig holds in-memory/JSON journal settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite journal settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig selects and configures the shape journal backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // memory, sqlite, postgres, none
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	DB     DBConfig     `json:"db" mapstructure:"db"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB settings for conversion statistics.
type InfluxConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Host     string        `json:"host" mapstructure:"host"`
	Port     string        `json:"port" mapstructure:"port"`
	Protocol string        `json:"protocol" mapstructure:"protocol"`
	Token    string        `json:"token" mapstructure:"token"`
	Org      string        `json:"org" mapstructure:"org"`
	Bucket   string        `json:"bucket" mapstructure:"bucket"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// GraylogConfig holds the GELF sink address.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./panodrawlogs")

	viper.SetDefault("annotation.closeRadius", 30.0)
	viper.SetDefault("annotation.minPolygonPoints", 3)
	viper.SetDefault("annotation.minFreehandPoints", 5)
	viper.SetDefault("annotation.simplifySpacing", 5.0)
	viper.SetDefault("annotation.defaultFov", 90.0)
	viper.SetDefault("annotation.readyAttempts", 20)
	viper.SetDefault("annotation.readyInterval", "250ms")

	viper.SetDefault("style.polygon.color", 0x00FF00)
	viper.SetDefault("style.polygon.fillAlpha", 0.3)
	viper.SetDefault("style.polygon.borderAlpha", 1.0)
	viper.SetDefault("style.polygon.borderWidth", 2.0)
	viper.SetDefault("style.polygon.zorder", 1000)
	viper.SetDefault("style.freehand.color", 0xFF0000)
	viper.SetDefault("style.freehand.fillAlpha", 0.3)
	viper.SetDefault("style.freehand.borderAlpha", 1.0)
	viper.SetDefault("style.freehand.borderWidth", 2.0)
	viper.SetDefault("style.freehand.zorder", 1000)

	viper.SetDefault("overlay.frameInterval", "33ms")
	viper.SetDefault("overlay.sendImage", false)

	viper.SetDefault("viewer.url", "ws://localhost:8765/viewer")
	viper.SetDefault("viewer.secret", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./journals")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./panodraw.db")
	viper.SetDefault("storage.db.host", "localhost")
	viper.SetDefault("storage.db.port", "5432")
	viper.SetDefault("storage.db.username", "postgres")
	viper.SetDefault("storage.db.password", "postgres")
	viper.SetDefault("storage.db.database", "panodraw")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "panodraw")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "panodraw-metrics")
	viper.SetDefault("influx.bucket", "panodraw")
	viper.SetDefault("influx.interval", "10s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetAnnotationConfig returns the drawing thresholds.
func GetAnnotationConfig() AnnotationConfig {
	return AnnotationConfig{
		CloseRadius:       viper.GetFloat64("annotation.closeRadius"),
		MinPolygonPoints:  viper.GetInt("annotation.minPolygonPoints"),
		MinFreehandPoints: viper.GetInt("annotation.minFreehandPoints"),
		SimplifySpacing:   viper.GetFloat64("annotation.simplifySpacing"),
		DefaultFOV:        viper.GetFloat64("annotation.defaultFov"),
		ReadyAttempts:     viper.GetInt("annotation.readyAttempts"),
		ReadyInterval:     viper.GetDuration("annotation.readyInterval"),
	}
}

func getShapeStyle(prefix string) ShapeStyle {
	return ShapeStyle{
		Color:       viper.GetUint32(prefix + ".color"),
		FillAlpha:   viper.GetFloat64(prefix + ".fillAlpha"),
		BorderAlpha: viper.GetFloat64(prefix + ".borderAlpha"),
		BorderWidth: viper.GetFloat64(prefix + ".borderWidth"),
		ZOrder:      viper.GetInt(prefix + ".zorder"),
	}
}

// GetStyleConfig returns the hotspot styles.
func GetStyleConfig() StyleConfig {
	return StyleConfig{
		Polygon:  getShapeStyle("style.polygon"),
		Freehand: getShapeStyle("style.freehand"),
	}
}

// GetOverlayConfig returns the overlay frame settings.
func GetOverlayConfig() OverlayConfig {
	return OverlayConfig{
		FrameInterval: viper.GetDuration("overlay.frameInterval"),
		SendImage:     viper.GetBool("overlay.sendImage"),
	}
}

// GetViewerConfig returns the viewer relay settings.
func GetViewerConfig() ViewerConfig {
	return ViewerConfig{
		URL:    viper.GetString("viewer.url"),
		Secret: viper.GetString("viewer.secret"),
	}
}

// GetStorageConfig returns the journal backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		DB: DBConfig{
			Host:     viper.GetString("storage.db.host"),
			Port:     viper.GetString("storage.db.port"),
			Username: viper.GetString("storage.db.username"),
			Password: viper.GetString("storage.db.password"),
			Database: viper.GetString("storage.db.database"),
		},
	}
}

// GetOTelConfig returns OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
		Interval: viper.GetDuration("influx.interval"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
