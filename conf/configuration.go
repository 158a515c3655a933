// Package conf loads renderd's configuration from a TOML file (found on the
// default search paths or named by the --config flag) and environment
// variables (RENDERD_ prefixed), following the same viper-backed
// global-struct convention the rest of the stack uses. No other command-line
// flag overrides a configuration value.
package conf

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/navidrome/renderd/log"
)

// configuration mirrors the shape of renderd.toml / RENDERD_* env vars.
type configuration struct {
	// DataFolder holds renderd_settings.json and renderd.db.
	DataFolder string

	// FriendlyName is advertised in the device description, unless the
	// settings store already holds a friendly name.
	FriendlyName string

	// Port is loaded from configuration but not used for binding: the
	// device description/SOAP/event server binds the port persisted in the
	// settings store (0 on first run, which selects an ephemeral port) and
	// falls back to an ephemeral port when that one cannot be bound.
	Port int

	// Interfaces is loaded from configuration but not consulted: SSDP uses
	// every active, non-loopback IPv4 interface and the HTTP server listens
	// on all addresses.
	Interfaces []string

	LogLevel string

	SSDP struct {
		NotifyInterval time.Duration
		MaxAge         int
	}

	Player struct {
		// Binary is the media player executable to supervise (mpv by default).
		Binary string
		// ExtraArgs is a shell-quoted string of additional player flags,
		// e.g. `--no-video --volume-max=100`.
		ExtraArgs     string
		Socket        string
		Fullscreen    bool
		OnTop         bool
		HWDecode      bool
		Geometry      string
		Autofit       string
		InitialVolume int
	}

	Events struct {
		TickInterval    time.Duration
		DefaultTimeout  time.Duration
		MaxMissedEvents int
	}

	History struct {
		Enabled bool
		Retain  int
	}

	Metrics struct {
		Enabled bool
		Addr    string
	}
}

// Server is the process-wide configuration singleton, populated by Load.
var Server = &configuration{}

func init() {
	v := newViper()
	setDefaults(v)
	bindEnv(v)
	Server = unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("renderd")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/renderd")
	v.AddConfigPath("/etc/renderd")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("datafolder", defaultDataFolder())
	v.SetDefault("friendlyname", "renderd")
	v.SetDefault("port", 0)
	v.SetDefault("loglevel", "info")
	v.SetDefault("ssdp.notifyinterval", 3*time.Second)
	v.SetDefault("ssdp.maxage", 1800)
	v.SetDefault("player.binary", "mpv")
	v.SetDefault("player.extraargs", "")
	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.ontop", false)
	v.SetDefault("player.hwdecode", true)
	v.SetDefault("player.geometry", "")
	v.SetDefault("player.autofit", "")
	v.SetDefault("player.initialvolume", 50)
	v.SetDefault("events.tickinterval", time.Second)
	v.SetDefault("events.defaulttimeout", 1800*time.Second)
	v.SetDefault("events.maxmissedevents", 10)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.retain", 500)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", "127.0.0.1:8880")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("RENDERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load re-reads configuration from the given file path, overriding defaults
// and environment-derived values. Used by cmd/ before Execute().
func Load(cfgFile string) error {
	v := newViper()
	setDefaults(v)
	bindEnv(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	Server = unmarshal(v)
	log.SetLevel(Server.LogLevel)
	return nil
}

func unmarshal(v *viper.Viper) *configuration {
	c := &configuration{}
	c.DataFolder = v.GetString("datafolder")
	c.FriendlyName = v.GetString("friendlyname")
	c.Port = v.GetInt("port")
	c.Interfaces = v.GetStringSlice("interfaces")
	c.LogLevel = v.GetString("loglevel")
	c.SSDP.NotifyInterval = v.GetDuration("ssdp.notifyinterval")
	c.SSDP.MaxAge = v.GetInt("ssdp.maxage")
	c.Player.Binary = v.GetString("player.binary")
	c.Player.ExtraArgs = v.GetString("player.extraargs")
	c.Player.Socket = v.GetString("player.socket")
	c.Player.Fullscreen = v.GetBool("player.fullscreen")
	c.Player.OnTop = v.GetBool("player.ontop")
	c.Player.HWDecode = v.GetBool("player.hwdecode")
	c.Player.Geometry = v.GetString("player.geometry")
	c.Player.Autofit = v.GetString("player.autofit")
	c.Player.InitialVolume = v.GetInt("player.initialvolume")
	c.Events.TickInterval = v.GetDuration("events.tickinterval")
	c.Events.DefaultTimeout = v.GetDuration("events.defaulttimeout")
	c.Events.MaxMissedEvents = v.GetInt("events.maxmissedevents")
	c.History.Enabled = v.GetBool("history.enabled")
	c.History.Retain = v.GetInt("history.retain")
	c.Metrics.Enabled = v.GetBool("metrics.enabled")
	c.Metrics.Addr = v.GetString("metrics.addr")
	return c
}
