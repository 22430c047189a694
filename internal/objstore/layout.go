// Package objstore implements the table's storage layout.
package objstore

import (
	"fmt"
	"path"
)

// Layout builds object keys for data files and timeline markers under
// one table root.
//
// Data files follow <root>/<partitionPath>/<fileId>_<writeToken>_<instant><ext>
// so every flushed batch is traceable to its file group and instant.
// Timeline markers live under <root>/timeline/.
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at basePath/tableName.
func NewLayout(basePath, tableName string) *Layout {
	return &Layout{root: path.Join(basePath, tableName)}
}

// DataFileKey returns the object key for one flushed bucket batch.
func (l *Layout) DataFileKey(partitionPath, fileID, writeToken, instant, ext string) string {
	name := fmt.Sprintf("%s_%s_%s%s", fileID, writeToken, instant, ext)
	return path.Join(l.root, partitionPath, name)
}

// TimelineKey returns the object key for an instant's commit marker.
func (l *Layout) TimelineKey(instant string) string {
	return path.Join(l.root, "timeline", instant+".commit")
}

// Root returns the table root prefix.
func (l *Layout) Root() string {
	return l.root
}
