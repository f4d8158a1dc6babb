/*
Package atomicfile writes a file so that readers only ever see the old
content or the complete new content.

Data goes to a temporary file in the destination directory. Close()
syncs it and renames it over the destination. If any Write() failed,
or Close() itself fails, the temporary file is removed and the
destination is left untouched.

	func saveSnapshot(path string, d []byte) error {
		f, err := atomicfile.New(path)
		if err != nil {
			return err
		}
		// a no-op after successful Close()
		defer f.RemoveIfNotClosed()

		if _, err = f.Write(d); err != nil {
			return err
		}
		return f.Close()
	}
*/
package atomicfile
