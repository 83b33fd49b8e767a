package receiver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cmur2/rsyncpull/internal/filelist"
	"github.com/cmur2/rsyncpull/internal/rsyncstats"
)

// Do runs the generator and receiver concurrently over the two halves
// of rt.Conn, then reads the server's final statistics triple and
// sends the closing goodbye sentinel (rsync/main.c:do_recv). Deletion of
// local files absent from fileList is out of scope for this client, so
// unlike upstream rsync's --delete this never walks the destination
// tree before transferring.
func (rt *Transfer) Do(ctx context.Context, fileList []*filelist.File) (*rsyncstats.TransferStats, error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return rt.GenerateFiles(fileList)
	})
	eg.Go(func() error {
		// Run the receiver on its own goroutine so that a generator
		// error surfaced through ctx unblocks this branch even while
		// RecvFiles is stuck waiting on the connection.
		errCh := make(chan error, 1)
		go func() {
			errCh <- rt.RecvFiles(fileList)
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stats, err := rt.report()
	if err != nil {
		return nil, err
	}

	if err := rt.Conn.WriteInt32(-1); err != nil {
		return nil, err
	}

	return stats, nil
}

// report reads the server's closing (bytes read, bytes written, total
// file size) triple (rsync/main.c:report).
func (rt *Transfer) report() (*rsyncstats.TransferStats, error) {
	read, err := rt.Conn.ReadInt64()
	if err != nil {
		return nil, err
	}
	written, err := rt.Conn.ReadInt64()
	if err != nil {
		return nil, err
	}
	size, err := rt.Conn.ReadInt64()
	if err != nil {
		return nil, err
	}
	if rt.Opts.Verbose {
		rt.Logger.Printf("server stats: read=%d written=%d size=%d", read, written, size)
	}
	return &rsyncstats.TransferStats{Read: read, Written: written, Size: size}, nil
}
