package order

import "github.com/taller7/muebleria-api/internal/identity"

// CanView gates single-order reads: the owner or an admin, nobody else.
// Ownerless legacy orders match no requester, so they stay admin-only.
func CanView(o *Order, who identity.Identity) bool {
	if who.IsAdmin() {
		return true
	}
	return o.UserID != "" && o.UserID == who.UserID
}
