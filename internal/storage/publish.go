package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/local/colorsplit/internal/filetype"
)

// Transfer pairs a finished local file with its destination reference.
type Transfer struct {
	Local string
	Dst   string
}

// Publish moves a finished local file to dst. s3:// destinations are uploaded
// and the local copy removed; anything else is a local path and left as is.
func Publish(ctx context.Context, objects ObjectStore, local, dst string) error {
	return PublishAll(ctx, objects, Transfer{Local: local, Dst: dst})
}

// PublishAll uploads every s3:// transfer. Either all of them end up in the
// bucket or none do: on the first failure the objects already uploaded are
// deleted again and every local copy is kept. Local copies are removed only
// after the last upload succeeds.
func PublishAll(ctx context.Context, objects ObjectStore, transfers ...Transfer) error {
	var pending []Transfer
	for _, t := range transfers {
		if t.Local == "" || t.Dst == "" || KindOf(t.Dst) != KindS3 {
			continue
		}
		pending = append(pending, t)
	}
	if len(pending) == 0 {
		return nil
	}
	if objects == nil {
		return fmt.Errorf("publish %s: s3 is not configured", pending[0].Dst)
	}

	var done []Transfer
	for _, t := range pending {
		if err := upload(ctx, objects, t); err != nil {
			return errors.Join(err, Unpublish(context.WithoutCancel(ctx), objects, done...))
		}
		done = append(done, t)
	}
	for _, t := range done {
		_ = os.Remove(t.Local)
	}
	return nil
}

// Unpublish deletes the destination objects of transfers.
func Unpublish(ctx context.Context, objects ObjectStore, transfers ...Transfer) error {
	var errs []error
	for _, t := range transfers {
		bucket, key, err := ParseS3URL(t.Dst)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := objects.Delete(ctx, bucket, key); err != nil {
			log.Error().Err(err).Str("ref", t.Dst).Msg("failed to remove partially published object")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func upload(ctx context.Context, objects ObjectStore, t Transfer) error {
	bucket, key, err := ParseS3URL(t.Dst)
	if err != nil {
		return err
	}
	f, err := os.Open(t.Local)
	if err != nil {
		return fmt.Errorf("publish %s: %w", t.Dst, err)
	}
	defer f.Close()
	return objects.Upload(ctx, bucket, key, f, filetype.PDFMIMEType)
}
