package blob

import (
	"landledger/internal/infra/blob/fs"
)

// NewFilesystem returns a store rooted at root ("./blobdata" when empty).
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}
