package polygon

import (
	"os"
	"path/filepath"

	"github.com/purplesyringa/sunwalker-conductor/archive"
	"github.com/purplesyringa/sunwalker-conductor/types"
)

// DirReader returns a FileReader serving a Polygon package's files off disk,
// rooted at root. Every path is validated with archive.ValidatePath before
// being joined onto root, so a problem.xml referencing "../../etc/passwd" or
// an absolute path is rejected as a ConfigurationFailure rather than
// escaping root.
func DirReader(root string) FileReader {
	return func(path string) ([]byte, error) {
		if err := archive.ValidatePath(path); err != nil {
			return nil, types.WrapConfigurationFailure(err, "polygon: invalid package path %q", path)
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
		if err != nil {
			return nil, types.WrapConfigurationFailure(err, "polygon: failed to read %q from package directory", path)
		}
		return data, nil
	}
}
