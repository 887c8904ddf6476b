package linktest

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorCommands(t *testing.T) {
	sim := NewSimulator("A740")
	sim.Password = "secret"

	tests := []struct {
		frame string
		want  []string
	}{
		{"VER", []string{"=VER,A740:V1.00:20100923_150338_P", "OK"}},
		{"BRT,4", []string{"E,6"}},
		{"LOGIN,wrong", []string{"E,6"}},
		{"LOGIN,secret", []string{"OK"}},
		{"BRT,4", []string{"OK"}},
		{"BRT", []string{"=BRT,4", "OK"}},
		{"BRT,4,5", []string{"E,2"}},
		{"DC,90", []string{"E,7"}},
		{"SEG,7,8", []string{"OK"}},
		{"SEG", []string{"=SEG,7,8,0,0,4,5", "OK"}},
		{"XYZ", []string{"E,1"}},
		{"RIR", []string{"E,1"}},
		{"CAL", []string{"=CAL", "OK"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sim.Handle(tt.frame), tt.frame)
	}
}

func TestSimulatorBootloaderChecksum(t *testing.T) {
	sim := NewSimulator("A750")

	assert.Equal(t, []string{"OK"}, sim.Handle("BOOTM"))
	assert.True(t, sim.InBootloader())
	assert.Equal(t, []string{"E,1"}, sim.Handle("BOOTM"))
	assert.Equal(t, []string{"E,1"}, sim.Handle("VER"))
	assert.Equal(t, []string{"OK"}, sim.Handle("EAPP"))

	// erased flash: 0x2600 bytes of 0xFF
	assert.Equal(t, []string{"=CHKAPP,DA00", "OK"}, sim.Handle("CHKAPP"))

	assert.Equal(t, []string{"OK"}, sim.Handle("PROG,1400,02,0102"))
	b, ok := sim.Flash(0x1401)
	require.True(t, ok)
	assert.Equal(t, byte(0x02), b)
	// 0xDA00 - 2*0xFF + 3
	assert.Equal(t, []string{"=CHKAPP,D805", "OK"}, sim.Handle("CHKAPP"))

	assert.Equal(t, []string{"E,4"}, sim.Handle("PROG,1400,03,0102"))

	assert.Equal(t, []string{"OK"}, sim.Handle("RUNAPP"))
	assert.False(t, sim.InBootloader())
	assert.Equal(t, 1, sim.Reboots())
}

func TestDeviceRepliesInOrder(t *testing.T) {
	dev := NewDevice(Reply(map[string][]string{
		"VER": {"=VER,A750:V2", "OK"},
		"LOC": {"=LOC,1", "OK"},
	}))
	defer dev.Close()

	_, err := dev.Write([]byte("VER\rLO"))
	require.NoError(t, err)
	_, err = dev.Write([]byte("C\r"))
	require.NoError(t, err)

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(dev)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var got []string
	for len(got) < 4 {
		select {
		case l := <-lines:
			got = append(got, l)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []string{"=VER,A750:V2", "OK", "=LOC,1", "OK"}, got)
	assert.Equal(t, []string{"VER", "LOC"}, dev.Frames())
}

func TestDeviceClosed(t *testing.T) {
	dev := NewDevice(nil)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	_, err := dev.Write([]byte("VER\r"))
	assert.Error(t, err)
	assert.Error(t, dev.Flush())
}
