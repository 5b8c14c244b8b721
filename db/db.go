// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package db stores normalized bars as typed columnar files partitioned by
// interval and symbol:
//
//	<root>/Data/<interval>/<symbol>/<first timestamp>.gob
//
// A file is named after the first bar of its chunk, so re-writing the same
// chunk replaces the file, while chunks starting at different times never
// collide. Overlapping chunks are not merged.
package db

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/quotes/fault"
)

// FileExt is the extension of chunk files.
const FileExt = ".gob"

// DataDir is the top level directory of the partitions under the root.
const DataDir = "Data"

func writeGob(fileName string, v interface{}) error {
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Annotate(err, "failed to open file for writing: '%s'", fileName)
	}
	enc := gob.NewEncoder(f)
	if err = enc.Encode(v); err != nil {
		f.Close()
		return errors.Annotate(err, "failed to write to '%s'", fileName)
	}
	if err = f.Close(); err != nil {
		return errors.Annotate(err, "failed to close '%s'", fileName)
	}
	return nil
}

func readGob(fileName string, v interface{}) error {
	f, err := os.Open(fileName)
	if err != nil {
		return errors.Annotate(err, "failed to open file for reading: '%s'", fileName)
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	if err = dec.Decode(v); err != nil {
		return errors.Annotate(err, "failed to read from '%s'", fileName)
	}
	return nil
}

// PartitionDir is the directory of chunk files for (interval, symbol).
func PartitionDir(root, interval, symbol string) string {
	return filepath.Join(root, DataDir, interval, symbol)
}

// FileName derives a path-safe file name from the chunk's first timestamp.
func FileName(c *Chunk) string {
	s := c.Start().Format(TimeLayout)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "-")
	return s + FileExt
}

// Writer writes chunks under the root directory.
type Writer struct {
	root string
}

// NewWriter creates a Writer. The root is created lazily on the first write.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Root directory of the writer.
func (w *Writer) Root() string { return w.root }

// Write the chunk into its partition and return the file path. An existing
// file for the same first timestamp is replaced. An empty chunk is not
// written and yields an empty path.
func (w *Writer) Write(ctx context.Context, c *Chunk) (string, error) {
	if c.Len() == 0 {
		logging.Warningf(ctx, "%s %s %s: empty chunk is not written",
			c.Symbol, c.Interval, c.Slice)
		return "", nil
	}
	dir := PartitionDir(w.root, c.Interval, c.Symbol)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", fault.Wrap(fault.Storage, err, "failed to create directory '%s'", dir)
	}
	path := filepath.Join(dir, FileName(c))
	tmp := path + ".tmp"
	if err := writeGob(tmp, toColumns(c)); err != nil {
		os.Remove(tmp)
		return "", fault.Wrap(fault.Storage, err, "failed to write chunk")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fault.Wrap(fault.Storage, err, "failed to move chunk to '%s'", path)
	}
	logging.Infof(ctx, "wrote %d bars to %s", c.Len(), path)
	return path, nil
}

// ReadChunk reads a chunk file written by Writer.
func ReadChunk(path string) (*Chunk, error) {
	var cols columns
	if err := readGob(path, &cols); err != nil {
		return nil, fault.Wrap(fault.Storage, err, "failed to read chunk")
	}
	c, err := cols.chunk()
	if err != nil {
		return nil, fault.Wrap(fault.Storage, err, "corrupt chunk '%s'", path)
	}
	return c, nil
}

// ChunkFiles lists the chunk files of the partition in file name order, which
// is the chronological order of the chunks' first timestamps. A missing
// partition has no files.
func ChunkFiles(root, interval, symbol string) ([]string, error) {
	pattern := filepath.Join(PartitionDir(root, interval, symbol), "*"+FileExt)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fault.Wrap(fault.Storage, err, "bad pattern '%s'", pattern)
	}
	sort.Strings(files)
	return files, nil
}

type loaded struct {
	index int
	chunk *Chunk
	err   error
}

// LoadAll reads all the chunks of the partition in parallel and concatenates
// their bars in ChunkFiles order. Rows are not re-sorted or deduplicated.
func LoadAll(ctx context.Context, root, interval, symbol string) ([]Bar, error) {
	files, err := ChunkFiles(root, interval, symbol)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(files))
	for i := range indices {
		indices[i] = i
	}
	f := func(i int) loaded {
		c, err := ReadChunk(files[i])
		return loaded{index: i, chunk: c, err: err}
	}
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(), iterator.FromSlice(indices), f)
	defer pm.Close()

	res := iterator.Reduce[loaded, []loaded](pm, []loaded{}, func(l loaded, acc []loaded) []loaded {
		return append(acc, l)
	})
	sort.Slice(res, func(i, j int) bool { return res[i].index < res[j].index })

	var bars []Bar
	for _, l := range res {
		if l.err != nil {
			return nil, errors.Annotate(l.err, "failed to load %s %s", interval, symbol)
		}
		bars = append(bars, l.chunk.Bars...)
	}
	logging.Debugf(ctx, "loaded %d bars from %d files for %s %s",
		len(bars), len(files), interval, symbol)
	return bars, nil
}

// Summary of a series of bars.
type Summary struct {
	Bars      int
	First     string // timestamp of the first bar
	Last      string // timestamp of the last bar
	MeanClose float64
	StdClose  float64
	Volume    uint64 // total
}

// Summarize computes summary statistics of the bars in their stored order.
func Summarize(bars []Bar) Summary {
	s := Summary{Bars: len(bars)}
	if len(bars) == 0 {
		return s
	}
	s.First = bars[0].Timestamp.Format(TimeLayout)
	s.Last = bars[len(bars)-1].Timestamp.Format(TimeLayout)
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
		s.Volume += b.Volume
	}
	s.MeanClose, s.StdClose = stat.MeanStdDev(closes, nil)
	if len(bars) == 1 {
		s.StdClose = 0
	}
	return s
}
