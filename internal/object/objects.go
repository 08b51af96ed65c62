package object

import "fmt"

// Source is anything encoded objects can be fetched from.
type Source interface {
	Get(id string) ([]byte, error)
}

// Objects reads typed objects out of a Source.
type Objects struct {
	src Source
}

func NewObjects(src Source) Objects {
	return Objects{src: src}
}

func (o Objects) load(id string, want Kind) ([]byte, error) {
	raw, err := o.src.Get(id)
	if err != nil {
		return nil, err
	}
	kind, payload, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	if kind != want {
		return nil, fmt.Errorf("object %s is a %s, want %s", id, kind, want)
	}
	return payload, nil
}

// Blob returns the raw content of a blob object.
func (o Objects) Blob(id string) ([]byte, error) {
	return o.load(id, KindBlob)
}

// Tree returns a decoded tree object.
func (o Objects) Tree(id string) (*Tree, error) {
	payload, err := o.load(id, KindTree)
	if err != nil {
		return nil, err
	}
	return DecodeTree(payload)
}

// Commit returns a decoded commit object.
func (o Objects) Commit(id string) (*Commit, error) {
	payload, err := o.load(id, KindCommit)
	if err != nil {
		return nil, err
	}
	return DecodeCommit(payload)
}
