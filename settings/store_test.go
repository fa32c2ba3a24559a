package settings

import (
	"testing"

	"github.com/airis-sh/airis/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	models.InitializeTestDb()

	store, err := NewStore()
	require.Nil(t, err)
	return store
}

func TestNewStoreLoadsSeedSettings(t *testing.T) {
	store := newTestStore(t)

	assert.Empty(t, store.Contacts())
	assert.Equal(t, models.DEFAULT_MESSAGE_TEMPLATE, store.MessageTemplate())
	assert.True(t, store.SosEnabled())
}

func TestStoreContacts(t *testing.T) {
	store := newTestStore(t)

	mom := &models.Contact{Name: "Mom", Phone: "555-1234"}
	assert.Nil(t, store.AddContact(mom))
	assert.Nil(t, store.AddContact(&models.Contact{Name: "Dr. Lee", Email: "lee@x.com"}))

	contacts := store.Contacts()
	assert.Len(t, contacts, 2)
	assert.Equal(t, "Mom", contacts[0].Name)
	assert.Equal(t, "Dr. Lee", contacts[1].Name)

	assert.Nil(t, store.UpdateContact(mom.ID, map[string]interface{}{"phone": "555-0000"}))
	assert.Equal(t, "555-0000", store.Contacts()[0].Phone)

	assert.Nil(t, store.RemoveContact(mom.ID))
	assert.Len(t, store.Contacts(), 1)

	assert.ErrorIs(t, store.RemoveContact(mom.ID), models.ErrContactNotFound)
	assert.ErrorIs(t, store.UpdateContact(9999, map[string]interface{}{"name": "x"}), models.ErrContactNotFound)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := newTestStore(t)
	assert.Nil(t, store.AddContact(&models.Contact{Name: "Mom", Phone: "555"}))

	snap := store.Snapshot()
	snap.Contacts[0].Name = "changed"
	snap.Contacts = append(snap.Contacts, models.Contact{Name: "extra"})

	assert.Equal(t, "Mom", store.Contacts()[0].Name)
	assert.Len(t, store.Contacts(), 1)
}

func TestSubscribe(t *testing.T) {
	store := newTestStore(t)
	received := []Snapshot{}

	unsubscribe := store.Subscribe(func(snap Snapshot) { received = append(received, snap) })

	assert.Nil(t, store.SetMessageTemplate("Please call me"))
	assert.Nil(t, store.SetSosEnabled(false))

	assert.Len(t, received, 2)
	assert.Equal(t, "Please call me", received[0].MessageTemplate)
	assert.True(t, received[0].SosEnabled)
	assert.Equal(t, "Please call me", received[1].MessageTemplate)
	assert.False(t, received[1].SosEnabled)

	unsubscribe()
	assert.Nil(t, store.SetSosEnabled(true))
	assert.Len(t, received, 2)
	assert.True(t, store.SosEnabled())
}
