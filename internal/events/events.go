// Package events provides a typed in-process publish/subscribe bus used to
// keep badge counts and session-scoped state in sync without the publishers
// knowing who listens.
package events

// Kind identifies the type of an Event.
type Kind string

const (
	KindGuestCartUpdated     Kind = "guest_cart_updated"
	KindCartUpdated          Kind = "cart_updated"
	KindGuestWishlistUpdated Kind = "guest_wishlist_updated"
	KindWishlistUpdated      Kind = "wishlist_updated"
	KindProfileUpdated       Kind = "profile_updated"
	KindLoggedIn             Kind = "logged_in"
	KindLoggedOut            Kind = "logged_out"
	KindNotification         Kind = "notification"
)

// Event is a message delivered to subscribers. Every event is scoped to a
// browser partition so listeners can ignore other sessions.
type Event interface {
	Kind() Kind
	PartitionID() string
}

// GuestCartUpdated carries the new item count of a guest cart.
type GuestCartUpdated struct {
	Partition string
	Count     int
}

func (GuestCartUpdated) Kind() Kind            { return KindGuestCartUpdated }
func (e GuestCartUpdated) PartitionID() string { return e.Partition }

// CartUpdated carries the new item count of an authenticated cart.
type CartUpdated struct {
	Partition string
	Count     int
}

func (CartUpdated) Kind() Kind            { return KindCartUpdated }
func (e CartUpdated) PartitionID() string { return e.Partition }

// GuestWishlistUpdated carries the new size of a guest wishlist.
type GuestWishlistUpdated struct {
	Partition string
	Count     int
}

func (GuestWishlistUpdated) Kind() Kind            { return KindGuestWishlistUpdated }
func (e GuestWishlistUpdated) PartitionID() string { return e.Partition }

// WishlistUpdated carries the new size of an authenticated wishlist.
type WishlistUpdated struct {
	Partition string
	Count     int
}

func (WishlistUpdated) Kind() Kind            { return KindWishlistUpdated }
func (e WishlistUpdated) PartitionID() string { return e.Partition }

// ProfileUpdated is published after the session user or profile changes.
type ProfileUpdated struct {
	Partition string
	UserID    string
}

func (ProfileUpdated) Kind() Kind            { return KindProfileUpdated }
func (e ProfileUpdated) PartitionID() string { return e.Partition }

// LoggedIn is published after a successful login.
type LoggedIn struct {
	Partition string
	UserID    string
}

func (LoggedIn) Kind() Kind            { return KindLoggedIn }
func (e LoggedIn) PartitionID() string { return e.Partition }

// LoggedOut is published when a session is torn down, either explicitly or
// because an upstream service rejected the token.
type LoggedOut struct {
	Partition string
	Reason    string
}

func (LoggedOut) Kind() Kind            { return KindLoggedOut }
func (e LoggedOut) PartitionID() string { return e.Partition }

// Notification is published for every notification frame received from the
// notification service stream.
type Notification struct {
	Partition string
	ID        string
	Title     string
	Message   string
	Type      string
	Read      bool
}

func (Notification) Kind() Kind            { return KindNotification }
func (e Notification) PartitionID() string { return e.Partition }
