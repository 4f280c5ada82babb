package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"cascadeBot/internal/domain"
)

func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"})

	for _, k := range klines {
		writer.Write([]string{
			k.OpenTime.Format(time.RFC3339),
			k.CloseTime.Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadKlinesFromCSV loads candles written by WriteKlinesToCSV. Loaded candles
// are always final.
func ReadKlinesFromCSV(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", filename, err)
	}

	var klines []*domain.Kline
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filename, err)
		}
		if len(record) < 9 {
			return nil, fmt.Errorf("reading %s: expected 9 columns, got %d", filename, len(record))
		}

		openTime, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("parsing open_time '%s': %w", record[0], err)
		}
		closeTime, err := time.Parse(time.RFC3339, record[1])
		if err != nil {
			return nil, fmt.Errorf("parsing close_time '%s': %w", record[1], err)
		}
		open, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing open '%s': %w", record[4], err)
		}
		high, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing high '%s': %w", record[5], err)
		}
		low, err := strconv.ParseFloat(record[6], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing low '%s': %w", record[6], err)
		}
		cls, err := strconv.ParseFloat(record[7], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing close '%s': %w", record[7], err)
		}
		vol, err := strconv.ParseFloat(record[8], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing volume '%s': %w", record[8], err)
		}

		klines = append(klines, &domain.Kline{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Symbol:    record[2],
			Interval:  record[3],
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    vol,
			IsFinal:   true,
		})
	}
	return klines, nil
}

// WriteTradesToCSV exports a trade ledger, one row per closed trade.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{
		"position_id", "symbol", "side", "interval", "preset_id",
		"entry_price", "exit_price", "quantity",
		"pnl_pct", "pnl", "entry_time", "exit_time", "duration_bars",
		"close_reason", "tp_hits", "max_profit_pct", "max_loss_pct",
	})

	for _, t := range trades {
		writer.Write([]string{
			t.PositionID,
			t.Symbol,
			string(t.Side),
			t.Interval,
			t.PresetID,
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.PnLPct, 'f', 4, 64),
			strconv.FormatFloat(t.PnL, 'f', 4, 64),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			strconv.Itoa(t.DurationBars),
			string(t.CloseReason),
			strconv.Itoa(len(t.TPHits)),
			strconv.FormatFloat(t.MaxProfitPct, 'f', 4, 64),
			strconv.FormatFloat(t.MaxLossPct, 'f', 4, 64),
		})
	}
	return writer.Error()
}
