package epub

import (
	"path"

	"github.com/pechorka/quire/pkg/markup"
	"github.com/pkg/errors"
)

const ContainerPath = "META-INF/container.xml"

// ParseContainer returns the full-path of the first rootfile declared in container.xml.
func ParseContainer(data []byte) (string, error) {
	doc, err := markup.Parse(data)
	if err != nil {
		return "", errors.Wrap(ErrMissingRootfile, err.Error())
	}
	rf := doc.Root().Find("rootfile")
	if rf == nil {
		return "", ErrMissingRootfile
	}
	fullPath, ok := rf.Attr("full-path")
	if !ok || fullPath == "" {
		return "", ErrMissingRootfile
	}
	return fullPath, nil
}

// OpfDir returns the directory prefix of the package document including the
// trailing slash, or "" when the document sits at the archive root.
func OpfDir(opfPath string) string {
	dir := path.Dir(opfPath)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}
