// Package settings persists renderd's identity (device UUID, last bound
// port, advertised name) across restarts, as a JSON document in the user
// config directory.
package settings

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rjeczalik/notify"

	"github.com/navidrome/renderd/log"
)

const fileName = "renderd_settings.json"

// document is the on-disk shape. Fields are exported so the store can be
// marshaled directly; callers use the typed accessors below instead of
// touching this struct.
type document struct {
	USN             string            `json:"usn"`
	ApplicationPort int               `json:"applicationPort"`
	FriendlyName    string            `json:"friendlyName"`
	LastKnownIP     string            `json:"lastKnownIP"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Store is a thread-safe, file-backed key/value document, one per data
// folder. Every Set call saves immediately.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document

	watchEvents chan notify.EventInfo
	cancelWatch context.CancelFunc
}

// Open loads (or initializes) the settings file under dataFolder.
func Open(dataFolder string) (*Store, error) {
	if err := os.MkdirAll(dataFolder, 0o755); err != nil {
		return nil, err
	}
	s := &Store{path: filepath.Join(dataFolder, fileName)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = document{Extra: map[string]string{}}
		return s.saveLocked()
	}
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn(context.Background(), "settings file is malformed, reinitializing", err)
		s.doc = document{Extra: map[string]string{}}
		return s.saveLocked()
	}
	if doc.Extra == nil {
		doc.Extra = map[string]string{}
	}
	s.doc = doc
	return nil
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// USN returns the persisted device UUID, minting one on first call. A
// fresh UUID is only ever minted through ResetUSN after that.
func (s *Store) USN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.USN == "" {
		s.doc.USN = "uuid:" + uuid.NewString()
		_ = s.saveLocked()
	}
	return s.doc.USN
}

// ResetUSN mints and persists a new device UUID, used when the bound HTTP
// port differs from the persisted one.
func (s *Store) ResetUSN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.USN = "uuid:" + uuid.NewString()
	_ = s.saveLocked()
	return s.doc.USN
}

func (s *Store) ApplicationPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ApplicationPort
}

func (s *Store) SetApplicationPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ApplicationPort = port
	_ = s.saveLocked()
}

func (s *Store) FriendlyName(fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.FriendlyName == "" {
		return fallback
	}
	return s.doc.FriendlyName
}

func (s *Store) SetFriendlyName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.FriendlyName = name
	_ = s.saveLocked()
}

// Get/Set provide a generic escape hatch for miscellaneous properties.
func (s *Store) Get(key, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.doc.Extra[key]; ok {
		return v
	}
	return fallback
}

func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Extra[key] = value
	_ = s.saveLocked()
}

// IPChanged reports whether the host's best-guess outbound IPv4 address
// differs from the one last recorded, and records the current one.
func (s *Store) IPChanged() bool {
	current := LocalIP()
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := current != "" && current != s.doc.LastKnownIP
	if changed {
		s.doc.LastKnownIP = current
		_ = s.saveLocked()
	}
	return changed
}

// LocalIP returns the first non-loopback IPv4 address found on an active
// interface, used both for IP-change detection and as the SSDP LOCATION
// fallback address.
func LocalIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			return ip4.String()
		}
	}
	return ""
}

// WatchExternalEdits watches the settings file for changes made by another
// process (e.g. a companion web UI editing renderd_settings.json directly)
// and invokes onChange after reloading. It runs until ctx is canceled.
func (s *Store) WatchExternalEdits(ctx context.Context, onChange func()) error {
	events := make(chan notify.EventInfo, 4)
	if err := notify.Watch(s.path, events, notify.Write); err != nil {
		return err
	}
	go func() {
		defer notify.Stop(events)
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
				if err := s.load(); err != nil {
					log.Warn(ctx, "failed to reload settings after external edit", err)
					continue
				}
				if onChange != nil {
					onChange()
				}
			}
		}
	}()
	return nil
}
