package gemini

import (
	stanpb "github.com/nats-io/go-nats-streaming/pb"
	"github.com/nats-io/nuid"
)

// nuidClientID generates a client connection id when the caller does not
// supply one explicitly.
func nuidClientID() string {
	return "gemini-" + nuid.Next()
}

// stanpbStartPosition is always "new only": a freshly (re)connected
// instance has no use for events published before it existed, since its
// own local cache was just (re)loaded from the authoritative store by
// application startup, outside this package's scope.
func stanpbStartPosition() stanpb.StartPosition {
	return stanpb.StartPosition_NewOnly
}
