// scenario/codec.go

package scenario

import (
	"fmt"
	"io"
	"reflect"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/math"
)

// Load reads a zstd-compressed msgpack scenario bundle. The bundle is
// only decoded, not resolved; pass it to Build for validation and world
// construction.
func Load(r io.Reader) (*Bundle, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("scenario container: %w", err)
	}
	defer zr.Close()

	var bundle Bundle
	if err := msgpack.NewDecoder(zr).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("scenario decode: %w", err)
	}
	return &bundle, nil
}

// Save writes the bundle in the format Load reads.
func Save(w io.Writer, bundle *Bundle) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(bundle); err != nil {
		zw.Close()
		return fmt.Errorf("scenario encode: %w", err)
	}
	return zw.Close()
}

// checkBundleFinite rejects any NaN or infinity anywhere in the bundle;
// a single bad float would otherwise spread through the physics
// silently.
func checkBundleFinite(bundle *Bundle) error {
	return walkFinite(reflect.ValueOf(bundle), "bundle")
}

func walkFinite(v reflect.Value, path string) error {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return walkFinite(v.Elem(), path)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if err := walkFinite(v.Field(i), path+"."+t.Field(i).Name); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walkFinite(v.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			if err := walkFinite(v.MapIndex(key), fmt.Sprintf("%s[%v]", path, key)); err != nil {
				return err
			}
		}
	case reflect.Float32, reflect.Float64:
		if !math.IsFinite(float32(v.Float())) {
			return fmt.Errorf("%w: %s", aviation.ErrNonFiniteValue, path)
		}
	}
	return nil
}
