// Package transform rewrites one raw delimited file into a corrected file
// that matches a schema.
package transform

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/charmap"
	texttransform "golang.org/x/text/transform"

	"github.com/stanstork/stratum-loader/internal/dsv"
	"github.com/stanstork/stratum-loader/internal/objectstore"
	"github.com/stanstork/stratum-loader/internal/repair"
	"github.com/stanstork/stratum-loader/internal/schema"
)

var (
	ErrSourceNotFound = errors.New("no source file under prefix")
	ErrSourceInvalid  = errors.New("source file is not .csv or .csv.gz")
	ErrMissingHeader  = errors.New("source file has no header record")
)

// SelectNewest picks the object with the lexically greatest name.
func SelectNewest(objects []objectstore.Object) (objectstore.Object, error) {
	if len(objects) == 0 {
		return objectstore.Object{}, ErrSourceNotFound
	}
	newest := objects[0]
	for _, o := range objects[1:] {
		if o.Name > newest.Name {
			newest = o
		}
	}
	if !strings.HasSuffix(newest.Name, ".csv") && !strings.HasSuffix(newest.Name, ".csv.gz") {
		return objectstore.Object{}, errors.Wrapf(ErrSourceInvalid, "%q", newest.Name)
	}
	return newest, nil
}

// OutputName names the corrected file for a source object: prefix plus the
// source base name, without a compression suffix.
func OutputName(prefix, sourceName string) string {
	return prefix + strings.TrimSuffix(path.Base(sourceName), ".gz")
}

type Options struct {
	InputPath  string // gzip-compressed when it ends in .gz
	OutputPath string
	Schema     *schema.Schema
	SkipHeader bool
}

type Result struct {
	RowsRead    int
	RowsWritten int
	RowsDropped int
	Checksum    uint64 // xxh3 of the output bytes
}

// checkEvery is how many records pass between context checks.
const checkEvery = 4096

// Run streams InputPath through decoding, arity filtering and repair into
// OutputPath. Row problems drop or null data; only I/O errors and a missing
// header record fail the run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Schema == nil {
		return nil, errors.New("transform: schema is required")
	}

	in, err := os.Open(opts.InputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", opts.InputPath)
	}
	defer in.Close()

	var src io.Reader = in
	if strings.HasSuffix(opts.InputPath, ".gz") {
		zr, err := gzip.NewReader(in)
		if err != nil {
			return nil, errors.Wrapf(err, "decompress %s", opts.InputPath)
		}
		defer zr.Close()
		src = zr
	}
	// Latin-1 maps every byte to a rune, so decoding never fails.
	src = texttransform.NewReader(src, charmap.ISO8859_1.NewDecoder())

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", opts.OutputPath)
	}
	defer out.Close()

	hash := xxh3.New()
	r := dsv.NewReader(src)
	w := dsv.NewWriter(io.MultiWriter(out, hash))

	res := &Result{}
	if opts.SkipHeader {
		_, err := r.Read()
		switch {
		case err == io.EOF:
			return nil, errors.Wrapf(ErrMissingHeader, "%s", path.Base(opts.InputPath))
		case err != nil && !isParseError(err):
			return nil, errors.Wrapf(err, "read header of %s", opts.InputPath)
		}
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isParseError(err) {
				res.RowsRead++
				res.RowsDropped++
				continue
			}
			return nil, errors.Wrapf(err, "read %s", opts.InputPath)
		}
		res.RowsRead++
		if res.RowsRead%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if len(rec) != opts.Schema.Len() {
			res.RowsDropped++
			continue
		}
		if err := w.Write(repair.Repair(rec, opts.Schema).Strings()); err != nil {
			return nil, errors.Wrapf(err, "write %s", opts.OutputPath)
		}
		res.RowsWritten++
	}

	if err := w.Flush(); err != nil {
		return nil, errors.Wrapf(err, "write %s", opts.OutputPath)
	}
	if err := out.Close(); err != nil {
		return nil, errors.Wrapf(err, "close %s", opts.OutputPath)
	}
	res.Checksum = hash.Sum64()
	return res, nil
}

func isParseError(err error) bool {
	var pe *dsv.ParseError
	return errors.As(err, &pe)
}
