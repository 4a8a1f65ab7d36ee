package port

// PageWalker discovers extracted page files under a source directory.
type PageWalker interface {
	Walk(root string) ([]PageFile, error)
}

// PageFile is one discovered page export.
type PageFile struct {
	Path string
	Page int
	Size int64
}
