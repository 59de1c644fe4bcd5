package persistence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meridianfx/candle-writer/internal/domain"
)

// Durable record layout. One record packs all candles sharing a
// (partition_key, row_key) pair. Keys encode coarse date parts and each
// packed entry carries the finest part, so the full bucket start is
// reconstructed from the three of them together:
//
//	minute  partition YYYYMMDD  row HH    entry minute-of-hour
//	hour    partition YYYYMM    row DD    entry hour-of-day
//	day     partition YYYY      row MM    entry day-of-month
//	month   partition YYYY      row YYYY  entry month-of-year
//
// Entries are joined by '|'; an entry is "pp;open;close;high;low" with
// pp zero-padded to two digits so parsing is unambiguous.

const (
	entrySeparator = "|"
	fieldSeparator = ";"
)

// PartitionKey derives the durable partition key for a bucket start.
func PartitionKey(candleType domain.CandleType, unixSec int64) string {
	t := time.Unix(unixSec, 0).UTC()
	switch candleType {
	case domain.CandleTypeMinute:
		return t.Format("20060102")
	case domain.CandleTypeHour:
		return t.Format("200601")
	default:
		return t.Format("2006")
	}
}

// RowKey derives the durable row key for a bucket start.
func RowKey(candleType domain.CandleType, unixSec int64) string {
	t := time.Unix(unixSec, 0).UTC()
	switch candleType {
	case domain.CandleTypeMinute:
		return t.Format("15")
	case domain.CandleTypeHour:
		return t.Format("02")
	case domain.CandleTypeDay:
		return t.Format("01")
	default:
		return t.Format("2006")
	}
}

// datePart returns the finest date part of the bucket start, the piece
// each packed entry carries.
func datePart(candleType domain.CandleType, unixSec int64) string {
	t := time.Unix(unixSec, 0).UTC()
	switch candleType {
	case domain.CandleTypeMinute:
		return fmt.Sprintf("%02d", t.Minute())
	case domain.CandleTypeHour:
		return fmt.Sprintf("%02d", t.Hour())
	case domain.CandleTypeDay:
		return fmt.Sprintf("%02d", t.Day())
	default:
		return fmt.Sprintf("%02d", int(t.Month()))
	}
}

// EncodeCandles packs a set of candles sharing one (partition, row)
// pair into the record payload, ascending by bucket start.
func EncodeCandles(candleType domain.CandleType, candles map[int64]domain.Candle) string {
	keys := make([]int64, 0, len(candles))
	for key := range candles {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteString(entrySeparator)
		}
		c := candles[key]
		b.WriteString(datePart(candleType, key))
		b.WriteString(fieldSeparator)
		b.WriteString(strconv.FormatFloat(c.Open, 'f', -1, 64))
		b.WriteString(fieldSeparator)
		b.WriteString(strconv.FormatFloat(c.Close, 'f', -1, 64))
		b.WriteString(fieldSeparator)
		b.WriteString(strconv.FormatFloat(c.High, 'f', -1, 64))
		b.WriteString(fieldSeparator)
		b.WriteString(strconv.FormatFloat(c.Low, 'f', -1, 64))
	}
	return b.String()
}

// DecodeCandles unpacks a record payload back into candles keyed by
// bucket start. Malformed entries are structural corruption and
// escalate as errors.
func DecodeCandles(candleType domain.CandleType, partitionKey, rowKey, data string) (map[int64]domain.Candle, error) {
	result := make(map[int64]domain.Candle)
	if data == "" {
		return result, nil
	}

	for _, entry := range strings.Split(data, entrySeparator) {
		fields := strings.Split(entry, fieldSeparator)
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed entry %q: want 5 fields, got %d", entry, len(fields))
		}

		bucket, err := parseBucketStart(candleType, partitionKey, rowKey, fields[0])
		if err != nil {
			return nil, err
		}

		prices := make([]float64, 4)
		for i, field := range fields[1:] {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed entry %q: field %d: %w", entry, i+1, err)
			}
			prices[i] = value
		}

		result[bucket] = domain.Candle{
			Open:     prices[0],
			Close:    prices[1],
			High:     prices[2],
			Low:      prices[3],
			Datetime: bucket,
		}
	}

	return result, nil
}

// parseBucketStart reassembles the full bucket start from the key pair
// and one entry's date part.
func parseBucketStart(candleType domain.CandleType, partitionKey, rowKey, part string) (int64, error) {
	partValue, err := strconv.Atoi(part)
	if err != nil {
		return 0, fmt.Errorf("malformed date part %q: %w", part, err)
	}

	switch candleType {
	case domain.CandleTypeMinute:
		year, month, day, err := splitDatePartition(partitionKey, true)
		if err != nil {
			return 0, err
		}
		hour, err := keyField(rowKey, "row key")
		if err != nil {
			return 0, err
		}
		return time.Date(year, time.Month(month), day, hour, partValue, 0, 0, time.UTC).Unix(), nil

	case domain.CandleTypeHour:
		year, month, _, err := splitDatePartition(partitionKey, false)
		if err != nil {
			return 0, err
		}
		day, err := keyField(rowKey, "row key")
		if err != nil {
			return 0, err
		}
		return time.Date(year, time.Month(month), day, partValue, 0, 0, 0, time.UTC).Unix(), nil

	case domain.CandleTypeDay:
		year, err := keyField(partitionKey, "partition key")
		if err != nil {
			return 0, err
		}
		month, err := keyField(rowKey, "row key")
		if err != nil {
			return 0, err
		}
		return time.Date(year, time.Month(month), partValue, 0, 0, 0, 0, time.UTC).Unix(), nil

	default: // month
		year, err := keyField(partitionKey, "partition key")
		if err != nil {
			return 0, err
		}
		return time.Date(year, time.Month(partValue), 1, 0, 0, 0, 0, time.UTC).Unix(), nil
	}
}

// splitDatePartition parses YYYYMM or YYYYMMDD partition keys.
func splitDatePartition(partitionKey string, withDay bool) (year, month, day int, err error) {
	want := 6
	if withDay {
		want = 8
	}
	if len(partitionKey) != want {
		return 0, 0, 0, fmt.Errorf("malformed partition key %q: want %d digits", partitionKey, want)
	}

	if year, err = strconv.Atoi(partitionKey[0:4]); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed partition key %q: %w", partitionKey, err)
	}
	if month, err = strconv.Atoi(partitionKey[4:6]); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed partition key %q: %w", partitionKey, err)
	}
	day = 1
	if withDay {
		if day, err = strconv.Atoi(partitionKey[6:8]); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed partition key %q: %w", partitionKey, err)
		}
	}
	return year, month, day, nil
}

func keyField(key, what string) (int, error) {
	value, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("malformed %s %q: %w", what, key, err)
	}
	return value, nil
}
