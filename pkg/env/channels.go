package env

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/robotalks/fes.go/pkg/fes"
)

// Default limits of the built-in channel set.
const (
	DefaultMaxAmplitude    = 20
	DefaultMaxPulseWidth   = 250
	DefaultInterphaseDelay = 100
)

// DefaultChannels returns the four bipolar channels of a standard board
// cable.
func DefaultChannels() []*fes.Channel {
	anodeCathodes := []byte{0x01, 0x23, 0x45, 0x67}
	chs := make([]*fes.Channel, len(anodeCathodes))
	for i, ac := range anodeCathodes {
		chs[i] = fes.MustNewChannel(fes.ChannelSpec{
			Name:            "ch" + strconv.Itoa(i+1),
			Index:           i,
			MaxAmplitude:    DefaultMaxAmplitude,
			MaxPulseWidth:   DefaultMaxPulseWidth,
			InterphaseDelay: DefaultInterphaseDelay,
			Aspect:          fes.Symmetric,
			AnodeCathode:    ac,
		})
	}
	return chs
}

var channelColumns = []string{"name", "index", "max_amp", "max_pw", "ipd", "aspect", "anode_cathode"}

// LoadChannels reads channels from CSV with the columns
// name,index,max_amp,max_pw,ipd,aspect,anode_cathode. A header row and
// lines starting with # are skipped. aspect and anode_cathode accept 0x
// prefixed hex.
func LoadChannels(r io.Reader) ([]*fes.Channel, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = len(channelColumns)
	var chs []*fes.Channel
	names := make(map[string]bool)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(rec[0], channelColumns[0]) {
			continue
		}
		line, _ := cr.FieldPos(0)
		ch, err := parseChannel(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if names[ch.Name()] {
			return nil, fmt.Errorf("line %d: duplicated channel %q", line, ch.Name())
		}
		names[ch.Name()] = true
		chs = append(chs, ch)
	}
	if len(chs) == 0 {
		return nil, errors.New("no channels defined")
	}
	return chs, nil
}

// LoadChannelsFile reads channels from a CSV file.
func LoadChannelsFile(fn string) ([]*fes.Channel, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	chs, err := LoadChannels(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return chs, nil
}

func parseChannel(rec []string) (*fes.Channel, error) {
	var nums [6]uint64
	bits := [6]int{8, 16, 16, 16, 8, 8}
	for i := range nums {
		v, err := strconv.ParseUint(strings.TrimSpace(rec[i+1]), 0, bits[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", channelColumns[i+1], err)
		}
		nums[i] = v
	}
	return fes.NewChannel(fes.ChannelSpec{
		Name:            strings.TrimSpace(rec[0]),
		Index:           int(nums[0]),
		MaxAmplitude:    int(nums[1]),
		MaxPulseWidth:   int(nums[2]),
		InterphaseDelay: uint16(nums[3]),
		Aspect:          fes.AspectRatioFromByte(byte(nums[4])),
		AnodeCathode:    byte(nums[5]),
	})
}
