package settings

import (
	"sync"

	"github.com/airis-sh/airis/colors"
	"github.com/airis-sh/airis/logger"
	"github.com/airis-sh/airis/models"
	"github.com/pkg/errors"
)

var logg = logger.NewLogger()

// Snapshot is a point-in-time copy of everything the alert path reads.
// Callers own it and may modify it freely.
type Snapshot struct {
	Contacts        []models.Contact `json:"contacts"`
	MessageTemplate string           `json:"message_template"`
	SosEnabled      bool             `json:"sos_enabled"`
}

// Copy returns a snapshot that shares nothing with snap
func (snap Snapshot) Copy() Snapshot {
	contacts := make([]models.Contact, len(snap.Contacts))
	copy(contacts, snap.Contacts)
	snap.Contacts = contacts
	return snap
}

// Store caches the persisted contacts & settings and tells subscribers
// whenever they change through it.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewStore loads the current contacts & settings. models.AutoMigrate must
// have been called first.
func NewStore() (*Store, error) {
	store := &Store{subscribers: map[int]func(Snapshot){}}

	if err := store.Reload(); err != nil {
		return nil, err
	}

	return store, nil
}

// Reload re-reads the database and notifies subscribers.
func (s *Store) Reload() error {
	contacts, err := models.FetchContacts()
	if err != nil {
		return errors.Wrap(err, "fetch contacts")
	}

	setting, err := models.FindSettings()
	if err != nil {
		return errors.Wrap(err, "find settings")
	}

	snap := Snapshot{Contacts: contacts, MessageTemplate: setting.MessageTemplate, SosEnabled: setting.SosEnabled}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Copy()
}

func (s *Store) Contacts() []models.Contact {
	return s.Snapshot().Contacts
}

func (s *Store) MessageTemplate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.MessageTemplate
}

func (s *Store) SosEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.SosEnabled
}

// Subscribe registers fn to receive a fresh snapshot after every change.
// The returned func removes it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) AddContact(contact *models.Contact) error {
	if err := models.CreateContact(contact); err != nil {
		return err
	}

	logg.Infof(colors.Green("[settings] ")+"added contact %v", contact)
	return s.Reload()
}

func (s *Store) UpdateContact(id interface{}, data map[string]interface{}) error {
	if err := models.UpdateContact(id, data); err != nil {
		return err
	}

	return s.Reload()
}

func (s *Store) RemoveContact(id interface{}) error {
	if err := models.DeleteContact(id); err != nil {
		return err
	}

	logg.Infof(colors.Green("[settings] ")+"removed contact id=%v", id)
	return s.Reload()
}

func (s *Store) SetMessageTemplate(template string) error {
	return s.UpdateSettings(map[string]interface{}{"message_template": template})
}

func (s *Store) SetSosEnabled(enabled bool) error {
	return s.UpdateSettings(map[string]interface{}{"sos_enabled": enabled})
}

// UpdateSettings updates message_template and/or sos_enabled. Other keys
// are ignored.
func (s *Store) UpdateSettings(data map[string]interface{}) error {
	if err := models.UpdateSettings(data); err != nil {
		return err
	}

	return s.Reload()
}

func (s *Store) publish(snap Snapshot) {
	s.subMu.Lock()
	subscribers := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subscribers {
		fn(snap.Copy())
	}
}
