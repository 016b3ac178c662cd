package cloudinary

import (
	"bytes"
	"context"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/juju/errors"
)

type CloudinaryUploader struct {
	cld *cld.Cloudinary
}

func NewCloudinaryUploader(cloud *cld.Cloudinary) *CloudinaryUploader {
	return &CloudinaryUploader{cld: cloud}
}

// UploadBytes stores an image under folder/filename, replacing any previous
// upload with the same id, and returns its https URL.
func (u *CloudinaryUploader) UploadBytes(ctx context.Context, folder string, filename string, b []byte) (string, error) {
	overwrite := true
	res, err := u.cld.Upload.Upload(ctx, bytes.NewReader(b), uploader.UploadParams{
		Folder:       folder,
		PublicID:     filename,
		ResourceType: "image",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", errors.Annotatef(err, "upload %s/%s", folder, filename)
	}
	if res.Error.Message != "" {
		return "", errors.Errorf("upload %s/%s: %s", folder, filename, res.Error.Message)
	}
	return res.SecureURL, nil
}
