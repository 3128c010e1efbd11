package publish

import "os"

// OSFileReader reads files from the local filesystem.
type OSFileReader struct{}

// ReadFile implements FileReader.
func (OSFileReader) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}
