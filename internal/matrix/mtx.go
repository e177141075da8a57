package matrix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedMatrix reports an unreadable or inconsistent matrix file.
var ErrMalformedMatrix = errors.New("malformed matrix")

// SampleFiles are the three files expected in each sample directory.
var SampleFiles = []string{"matrix.mtx", "genes.tsv", "barcodes.tsv"}

// ReadMTX parses a MatrixMarket coordinate file. Indices in the file
// are 1-based; the returned matrix is 0-based. Only the
// coordinate/general layout used by the three-file convention is
// supported.
func ReadMTX(r io.Reader) (*CSC, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedMatrix)
	}
	header := strings.Fields(strings.ToLower(scanner.Text()))
	if len(header) < 4 || header[0] != "%%matrixmarket" || header[1] != "matrix" || header[2] != "coordinate" {
		return nil, fmt.Errorf("%w: unsupported header %q", ErrMalformedMatrix, scanner.Text())
	}

	var rows, cols, nnz int
	sized := false
	var entries []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		fields := strings.Fields(line)
		if !sized {
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad size line %q", ErrMalformedMatrix, line)
			}
			var err error
			if rows, err = strconv.Atoi(fields[0]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
			}
			if cols, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
			}
			if nnz, err = strconv.Atoi(fields[2]); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
			}
			entries = make([]Entry, 0, nnz)
			sized = true
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: bad entry line %q", ErrMalformedMatrix, line)
		}
		row, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
		}
		col, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
		}
		val, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
		}
		entries = append(entries, Entry{Row: row - 1, Col: col - 1, Val: val})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	if !sized {
		return nil, fmt.Errorf("%w: missing size line", ErrMalformedMatrix)
	}
	if len(entries) != nnz {
		return nil, fmt.Errorf("%w: expected %d entries, found %d", ErrMalformedMatrix, nnz, len(entries))
	}

	m, err := NewCSC(rows, cols, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
	}
	return m, nil
}

// ReadIDList reads a one-entry-per-line identifier file. Lines with
// multiple tab-separated columns use the last column (the 10x genes.tsv
// layout stores ensembl id then symbol).
func ReadIDList(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	var ids []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		ids = append(ids, strings.TrimSpace(fields[len(fields)-1]))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("identifier file is empty")
	}
	return ids, nil
}

// ReadSampleDir loads the three-file sparse layout from a sample
// directory. A missing directory or inconsistent dimensions is fatal.
func ReadSampleDir(dir string) (*CSC, []string, []string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sample directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil, nil, fmt.Errorf("sample directory %q is not a directory", dir)
	}

	mtxFile, err := os.Open(filepath.Join(dir, "matrix.mtx"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open matrix: %w", err)
	}
	defer mtxFile.Close()
	counts, err := ReadMTX(mtxFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", filepath.Join(dir, "matrix.mtx"), err)
	}

	genes, err := readIDFile(filepath.Join(dir, "genes.tsv"))
	if err != nil {
		return nil, nil, nil, err
	}
	barcodes, err := readIDFile(filepath.Join(dir, "barcodes.tsv"))
	if err != nil {
		return nil, nil, nil, err
	}

	if len(genes) != counts.Rows {
		return nil, nil, nil, fmt.Errorf("%w: %d genes listed but matrix has %d rows", ErrMalformedMatrix, len(genes), counts.Rows)
	}
	if len(barcodes) != counts.Cols {
		return nil, nil, nil, fmt.Errorf("%w: %d barcodes listed but matrix has %d columns", ErrMalformedMatrix, len(barcodes), counts.Cols)
	}
	return counts, genes, barcodes, nil
}

func readIDFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	ids, err := ReadIDList(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ids, nil
}
