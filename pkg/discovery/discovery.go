package discovery

// Discovery abstracts how the fixed cluster roster is provided. Entries are
// "id@host:port" strings; parsing lives in pkg/membership. The roster is
// read once at startup, so implementations only need a consistent snapshot.
type Discovery interface {
    Entries() []string
}
