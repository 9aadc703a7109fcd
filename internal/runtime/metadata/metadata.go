// Package metadata holds the headers carried by control-plane commands.
package metadata

const (
	// KeyOperation names the lifecycle operation (BindActor, RemoveActor).
	KeyOperation = "op"
	// KeyActor names the caller issuing the command.
	KeyActor = "actor"
	// KeyCommandID identifies a single command across retries.
	KeyCommandID = "command_id"
)

// Metadata represents the headers carried alongside a control command.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	cloned := make(Metadata, len(m)+extra)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

func (m Metadata) Operation() string { return m[KeyOperation] }
func (m Metadata) Actor() string     { return m[KeyActor] }
func (m Metadata) CommandID() string { return m[KeyCommandID] }

// Command builds the headers for a control command.
func Command(op, actor, commandID string) Metadata {
	return Metadata{
		KeyOperation: op,
		KeyActor:     actor,
		KeyCommandID: commandID,
	}
}
