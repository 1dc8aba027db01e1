package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

const acceptEncoding = "br, zstd, gzip, deflate"

type limiter interface {
	Wait(ctx context.Context) error
}

func newLimiter(rps float64) limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

type statusError struct {
	url    string
	status int
}

func (e statusError) Error() string {
	return fmt.Sprintf("wrong status code (%d) for: %s", e.status, e.url)
}

func (e statusError) retryable() bool {
	return e.status >= http.StatusInternalServerError || e.status == http.StatusTooManyRequests
}

func (l *Loader) fetch(ctx context.Context, u string) ([]byte, error) {
	logger := l.logger.WithField("url", u)
	logger.Debug("Fetching source...")
	startTime := time.Now()

	var data []byte
	err := retry(ctx, l.opts.Retries+1, l.opts.RetryBackoff, logger, func() (error, bool) {
		var err error
		data, err = l.fetchOnce(ctx, u)
		if err == nil {
			return nil, false
		}
		var serr statusError
		if errors.As(err, &serr) {
			return err, serr.retryable()
		}
		// the request itself failed, which is retryable unless it was cancelled
		return err, ctx.Err() == nil && !errors.Is(err, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"t":   time.Since(startTime),
		"len": len(data),
	}).Debug("Fetched!")
	return data, nil
}

func (l *Loader) fetchOnce(ctx context.Context, u string) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if l.opts.UserAgent != "" {
		req.Header.Set("User-Agent", l.opts.UserAgent)
	}

	res, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	// Ensure that the entire response body is read and closed, e.g. in case of decoding errors
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, statusError{url: u, status: res.StatusCode}
	}

	return readResponseBody(res)
}

type readCloser struct {
	io.Reader
}

// Close readers with differing Close() implementations
func (r readCloser) Close() error {
	var err error
	switch v := r.Reader.(type) {
	case io.Closer:
		err = v.Close()
	case *zstd.Decoder:
		v.Close()
	}
	return err
}

// readResponseBody transparently decompresses the body if it has a
// content-encoding we support, otherwise it's returned as it is.
func readResponseBody(res *http.Response) ([]byte, error) {
	rc := readCloser{res.Body}

	contentEncoding := strings.ToLower(strings.TrimSpace(res.Header.Get("Content-Encoding")))
	if contentEncoding != "" && contentEncoding != "identity" {
		var decoder io.Reader
		var err error
		switch contentEncoding {
		case "deflate":
			decoder, err = zlib.NewReader(res.Body)
		case "gzip", "x-gzip":
			decoder, err = gzip.NewReader(res.Body)
		case "zstd":
			decoder, err = zstd.NewReader(res.Body)
		case "br":
			decoder = brotli.NewReader(res.Body)
		default:
			err = fmt.Errorf("unsupported content encoding %q", contentEncoding)
		}
		if err != nil {
			return nil, fmt.Errorf("error decompressing the response body: %w", err)
		}
		rc = readCloser{decoder}
	}

	var buf bytes.Buffer
	_, err := io.Copy(&buf, rc)
	if err != nil {
		err = fmt.Errorf("error reading the response body: %w", err)
	}
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("error decompressing the response body: %w", cerr)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeText strips a byte order mark and converts UTF-16 content to UTF-8.
func decodeText(data []byte) ([]byte, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, fmt.Errorf("couldn't decode the content as text: %w", err)
	}
	return result, nil
}

// retry calls do up to attempts times, as long as it returns a retryable
// error, waiting exponentially longer between attempts.
func retry(
	ctx context.Context,
	attempts int,
	baseBackoff time.Duration,
	logger logrus.FieldLogger,
	do func() (error, bool),
) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := baseBackoff << (i - 1)
			if baseBackoff > 0 {
				wait += time.Duration(r.Int63n(int64(baseBackoff)/2 + 1))
			}

			logger.WithFields(logrus.Fields{
				"attempt": i + 1,
				"max":     attempts,
				"wait":    wait,
				"error":   lastErr,
			}).Debug("Retrying fetch after error")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err, retryable := do() //nolint:revive
		if err == nil {
			return nil
		}

		lastErr = err
		if !retryable {
			return lastErr
		}
	}

	logger.WithFields(logrus.Fields{
		"attempts": attempts,
		"error":    lastErr,
	}).Debug("Max retry attempts reached")

	return lastErr
}
