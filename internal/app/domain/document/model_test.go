package document

import "testing"

func TestFileTypeFor(t *testing.T) {
	cases := map[string]FileType{
		"image/png":          FileTypeImage,
		"image/jpeg":         FileTypeImage,
		"application/pdf":    FileTypePDF,
		"application/msword": FileTypeDocument,
		"":                   FileTypeDocument,
	}
	for mime, want := range cases {
		if got := FileTypeFor(mime); got != want {
			t.Errorf("FileTypeFor(%q) = %s, want %s", mime, got, want)
		}
	}
}
