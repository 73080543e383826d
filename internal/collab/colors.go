package collab

import "hash/fnv"

// colorPalette holds the cursor colors assigned to collaborators. Order
// matters: a user id always hashes to the same entry.
var colorPalette = []string{
	"#e6194b",
	"#3cb44b",
	"#ffe119",
	"#4363d8",
	"#f58231",
	"#911eb4",
	"#46f0f0",
	"#f032e6",
	"#bcf60c",
	"#fabebe",
	"#008080",
	"#e6beff",
}

// ColorForUser deterministically maps a user id to a palette color so the
// same user keeps the same color across reconnects and server instances.
func ColorForUser(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return colorPalette[h.Sum32()%uint32(len(colorPalette))]
}
