package channel

import "testing"

func TestAllocateAssignsNonZeroUniqueID(t *testing.T) {
	tbl := NewTable()
	c1 := tbl.Allocate(1, DefaultWindowSize, "session")
	if c1.LocalID == 0 {
		t.Fatal("allocated channel ID must not be zero")
	}
	c2 := tbl.Allocate(2, DefaultWindowSize, "session")
	if c1.LocalID == c2.LocalID {
		t.Fatal("allocated channel IDs must be unique")
	}
}

func TestWindowAdjustHeuristic(t *testing.T) {
	c := &Channel{LocalWindow: DefaultWindowSize}
	c.AccountReceived(DefaultWindowSize/2 + 1)
	if !c.NeedsWindowAdjust() {
		t.Fatal("window below half should need an adjust")
	}
	amount := c.GrantWindowAdjust()
	if c.LocalWindow != DefaultWindowSize {
		t.Fatalf("window should be restored to full, got %d", c.LocalWindow)
	}
	if amount != DefaultWindowSize/2+1 {
		t.Fatalf("got grant amount %d", amount)
	}
	if c.NeedsWindowAdjust() {
		t.Fatal("freshly granted window should not need another adjust")
	}
}

func TestAccountReceivedIgnoresOverflow(t *testing.T) {
	c := &Channel{LocalWindow: 10}
	c.AccountReceived(100) // RFC 4254 §5.2: excess beyond window is ignored
	if c.LocalWindow != 10 {
		t.Fatalf("window should be unchanged on overflow, got %d", c.LocalWindow)
	}
}

func TestOpenConfirmationRoundtrip(t *testing.T) {
	c := &Channel{LocalID: 7, RemoteID: 3, LocalWindow: DefaultWindowSize, MaxPacketSize: DefaultMaxPacketSize}
	payload := EncodeOpenConfirmation(c)
	localID, remoteID, window, maxPacket, err := ParseOpenConfirmation(payload)
	if err != nil {
		t.Fatalf("ParseOpenConfirmation: %v", err)
	}
	if localID != 3 || remoteID != 7 || window != DefaultWindowSize || maxPacket != DefaultMaxPacketSize {
		t.Fatalf("got %d %d %d %d", localID, remoteID, window, maxPacket)
	}
}

func TestDataRoundtrip(t *testing.T) {
	payload := EncodeData(5, []byte("hello"))
	channelID, _, data, err := ParseData(payload, false)
	if err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if channelID != 5 || string(data) != "hello" {
		t.Fatalf("got %d %q", channelID, data)
	}
}

func TestRequestParsesExecCommand(t *testing.T) {
	payload := EncodeRequest(9, "exec", true, EncodeExecRequest("ls -la"))
	req, err := ParseRequest(payload)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Type != "exec" || !req.WantReply || req.ChannelID != 9 {
		t.Fatalf("got %+v", req)
	}
	cmd, err := req.TypeSpecific.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if string(cmd) != "ls -la" {
		t.Fatalf("got %q", cmd)
	}
}

func TestApplyWindowAdjustGrowsRemoteWindow(t *testing.T) {
	c := &Channel{RemoteWindow: 0}
	c.ApplyWindowAdjust(100)
	if c.RemoteWindow != 100 {
		t.Fatalf("got %d", c.RemoteWindow)
	}
}
