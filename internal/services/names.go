package services

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-loyalty-backend/internal/sysutil"
)

// fallbackDisplayName is used when a registration carries no usable name.
const fallbackDisplayName = "User"

// cleanName trims s and normalizes it to NFC so visually identical names
// compare and sort the same.
func cleanName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// displayNameFor picks the name shown to staff: the explicit display name,
// else "first last", else the username, else "User".
func displayNameFor(r Registration) string {
	full := strings.TrimSpace(cleanName(r.FirstName) + " " + cleanName(r.LastName))
	return sysutil.FirstNonEmpty(
		cleanName(r.DisplayName),
		full,
		cleanName(r.Username),
		fallbackDisplayName,
	)
}
