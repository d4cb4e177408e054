package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	MsgSelectFile   = "please select an XML file."
	networkErrorFmt = "network or client error: %v"
)

// ErrNoFileSelected is returned by Submit when the form holds no file.
var ErrNoFileSelected = errors.New("client: no file selected")

// Image is a chart returned by the server.
type Image struct {
	Data        []byte
	ContentType string
	Alt         string
}

// View is the page the form drives: an error element, a loading indicator
// and a result container.
type View interface {
	HideError()
	ShowError(msg string)
	ShowLoading()
	HideLoading()
	ClearResult()
	AppendImage(img Image)
}

// Form is one file input bound to a view and an uploader.
type Form struct {
	// Files are the selected paths. Only the first one is sent.
	Files    []string
	View     View
	Uploader Uploader
}

// Submit runs one upload cycle and reflects its outcome on the view. The
// returned error is the same failure the view was shown.
func (f *Form) Submit(ctx context.Context) error {
	f.View.HideError()
	f.View.ClearResult()

	if len(f.Files) == 0 || f.Files[0] == "" {
		f.View.ShowError(MsgSelectFile)
		return ErrNoFileSelected
	}

	f.View.ShowLoading()
	defer f.View.HideLoading()

	img, err := f.send(ctx, f.Files[0])
	if err != nil {
		var serr *ServerError
		if errors.As(err, &serr) {
			f.View.ShowError(serr.Error())
		} else {
			f.View.ShowError(fmt.Sprintf(networkErrorFmt, err))
		}
		return err
	}

	f.View.AppendImage(img)
	return nil
}

func (f *Form) send(ctx context.Context, path string) (Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return Image{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Image{}, err
	}
	return f.Uploader.Upload(ctx, filepath.Base(path), file, info.Size())
}
