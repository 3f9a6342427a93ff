// Package ibus drives a compose session from the IBus input method
// framework over D-Bus.
package ibus

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"

	"composeim/internal/session"
)

// IBus D-Bus names.
const (
	FactoryPath      = "/org/freedesktop/IBus/Factory"
	FactoryInterface = "org.freedesktop.IBus.Factory"
	EngineInterface  = "org.freedesktop.IBus.Engine"
	EnginePathPrefix = "/org/freedesktop/IBus/Engine/"

	BusName    = "org.freedesktop.IBus.ComposeIM"
	EngineName = "compose"
)

// IBus key event state masks.
const (
	ShiftMask   uint32 = 1 << 0
	LockMask    uint32 = 1 << 1
	ControlMask uint32 = 1 << 2
	Mod1Mask    uint32 = 1 << 3
	Mod4Mask    uint32 = 1 << 6
	ReleaseMask uint32 = 1 << 30
)

// shortcutMask marks key events that belong to application shortcuts.
const shortcutMask = ControlMask | Mod1Mask | Mod4Mask

var ErrNameTaken = errors.New("ibus: bus name already owned")

// Bus is the subset of *dbus.Conn the service needs.
type Bus interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Service is the engine factory. All engines share one session; D-Bus
// method calls are serialized by mu.
type Service struct {
	bus  Bus
	sess *session.Session
	log  *slog.Logger

	mu      sync.Mutex
	nextID  uint32
	engines map[dbus.ObjectPath]*Engine
}

// NewService creates a factory driving sess.
func NewService(bus Bus, sess *session.Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bus:     bus,
		sess:    sess,
		log:     logger,
		engines: make(map[dbus.ObjectPath]*Engine),
	}
}

// Connect opens the IBus bus at addr, falling back to $IBUS_ADDRESS and
// then the session bus.
func Connect(addr string) (*dbus.Conn, error) {
	if addr == "" {
		addr = os.Getenv("IBUS_ADDRESS")
	}
	if addr != "" {
		conn, err := dbus.Connect(addr)
		if err != nil {
			return nil, fmt.Errorf("ibus: connect %s: %w", addr, err)
		}
		return conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("ibus: connect session bus: %w", err)
	}
	return conn, nil
}

// Register exports the factory on conn and claims the component name.
func Register(conn *dbus.Conn, svc *Service) error {
	if err := conn.Export(svc, FactoryPath, FactoryInterface); err != nil {
		return fmt.Errorf("ibus: export factory: %w", err)
	}
	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("ibus: request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return ErrNameTaken
	}
	return nil
}

// CreateEngine implements org.freedesktop.IBus.Factory.
func (s *Service) CreateEngine(name string) (dbus.ObjectPath, *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name != EngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine", []interface{}{"unknown engine: " + name})
	}

	s.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("%s%d", EnginePathPrefix, s.nextID))
	e := &Engine{svc: s, path: path}
	if err := s.bus.Export(e, path, EngineInterface); err != nil {
		return "", dbus.MakeFailedError(err)
	}
	s.engines[path] = e
	s.log.Info("engine created", "path", path)
	return path, nil
}

// Engines returns the number of live engines.
func (s *Service) Engines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

// Stats returns the shared session counters.
func (s *Service) Stats() session.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Stats()
}
