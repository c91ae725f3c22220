package importer

import (
	"github.com/pechorka/quire/internal/epub"
	"github.com/pechorka/quire/pkg/zipindex"
	"github.com/pkg/errors"
)

const maxErrorLen = 127

var (
	ErrImportActive        = errors.New("import already in progress")
	ErrNotDone             = errors.New("import is not finished")
	ErrFileOpenFailed      = errors.New("failed to open file")
	ErrMissingContainerXML = errors.New("missing container.xml")
	ErrOpfNotFound         = errors.New("opf file not found")
	ErrDatabaseOpenFailed  = errors.New("failed to open database")

	errContainerCompressed = errors.Wrap(zipindex.ErrUnsupportedCompression, "container.xml")
	errOpfCompressed       = errors.Wrap(zipindex.ErrUnsupportedCompression, "opf")
)

// failureMessages are the texts reported by Machine.Err, checked in order.
var failureMessages = []struct {
	err error
	msg string
}{
	{errContainerCompressed, "Unsupported compression in container.xml"},
	{errOpfCompressed, "Unsupported compression in OPF"},
	{zipindex.ErrInvalidZip, "Invalid ZIP file"},
	{ErrMissingContainerXML, "Missing container.xml"},
	{epub.ErrMissingRootfile, "Missing rootfile in container.xml"},
	{ErrOpfNotFound, "OPF file not found"},
	{epub.ErrOpfParseFailed, "Failed to parse OPF"},
	{ErrFileOpenFailed, "Failed to open file"},
	{ErrDatabaseOpenFailed, "Failed to open database"},
}

func failureMessage(err error) string {
	for _, fm := range failureMessages {
		if errors.Is(err, fm.err) {
			return fm.msg
		}
	}
	return epub.Truncate(err.Error(), maxErrorLen)
}
