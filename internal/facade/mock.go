package facade

import "sync"

// coreScript describes one core's scripted behavior across scheduler
// cycles: how many CoresBusyFlags/CoresValidFlags snapshots it stays busy
// for after a Start, what it reports when it stops, and what command
// statuses it returns to Start attempts.
type coreScript struct {
	busyCycles           int
	busyCyclesRemaining  int
	started              bool
	valid                bool
	result               uint64
	startRejectStatus    ClusterCommandStatus
	startRejectRemaining int
}

// MockFacade implements the same register contract as Facade without any
// real memory mapping, so scheduler tests can script per-core completion
// sequences deterministically. Call counts and last-seen values are tracked
// for test assertions.
type MockFacade struct {
	mu sync.Mutex

	coresCount uint64

	cores map[uint64]*coreScript

	selectedCore  uint64
	lastCommand   ClusterCommand
	commandStatus ClusterCommandStatus
	coreResult    uint64
	closed        bool

	commandCalls int
	resetCalls   int
	startCalls   int
	loadCalls    int
}

// NewMockFacade creates a mock cluster with the given core count. All cores
// start idle (not busy, not valid).
func NewMockFacade(coresCount uint64) *MockFacade {
	m := &MockFacade{
		coresCount: coresCount,
		cores:      make(map[uint64]*coreScript, coresCount),
	}
	for i := uint64(0); i < coresCount; i++ {
		m.cores[i] = &coreScript{}
	}
	return m
}

// ScriptCompletion arranges for core to report busy for busyCycles further
// CoresBusyFlags snapshots after its next Start, then stop with the given
// valid/result outcome. busyCycles == 0 makes the core appear already
// stopped on the very next snapshot after Start.
func (m *MockFacade) ScriptCompletion(core uint64, busyCycles int, valid bool, result uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cores[core]
	if !ok {
		s = &coreScript{}
		m.cores[core] = s
	}
	s.busyCycles = busyCycles
	s.valid = valid
	s.result = result
}

// ScriptStartStatus makes the next count Start commands issued against core
// return status instead of Success.
func (m *MockFacade) ScriptStartStatus(core uint64, status ClusterCommandStatus, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cores[core]
	if !ok {
		s = &coreScript{}
		m.cores[core] = s
	}
	s.startRejectStatus = status
	s.startRejectRemaining = count
}

func (m *MockFacade) CoresCount() uint64       { return m.coresCount }
func (m *MockFacade) FixedSize() uint64        { return 64 }
func (m *MockFacade) FixedIntegerSize() uint64 { return 32 }

func (m *MockFacade) LoadCoreAddress(core uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectedCore = core
	m.loadCalls++
}

func (m *MockFacade) LoadCoreX(Operand)            { m.countLoad() }
func (m *MockFacade) LoadCoreY(Operand)            { m.countLoad() }
func (m *MockFacade) LoadCoreIterationsMax(uint64) { m.countLoad() }

func (m *MockFacade) countLoad() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
}

// LoadCommand executes the scripted command protocol against the currently
// selected core and sets CommandStatus for the following read, exactly the
// way a real cluster would settle status after the write delay.
func (m *MockFacade) LoadCommand(cmd ClusterCommand) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commandCalls++
	m.lastCommand = cmd
	core := m.selectedCore
	script := m.cores[core]

	switch cmd {
	case CommandReset:
		m.resetCalls++
		if script != nil {
			script.busyCyclesRemaining = 0
			script.started = false
		}
		m.commandStatus = StatusSuccess

	case CommandStart:
		m.startCalls++
		if script == nil {
			m.commandStatus = StatusInvalidCore
			return
		}
		if script.startRejectRemaining > 0 {
			m.commandStatus = script.startRejectStatus
			script.startRejectRemaining--
			return
		}
		script.busyCyclesRemaining = script.busyCycles
		script.started = true
		m.commandStatus = StatusSuccess

	case CommandLoadResult:
		if script == nil {
			m.commandStatus = StatusInvalidCore
			return
		}
		if script.started && script.valid {
			m.coreResult = script.result
			m.commandStatus = StatusSuccess
		} else {
			m.commandStatus = StatusAfterReset
		}

	default:
		m.commandStatus = StatusSuccess
	}
}

func (m *MockFacade) CommandStatus() ClusterCommandStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commandStatus
}

// CoresBusyFlags reports each scripted core as busy while its
// busyCyclesRemaining counter is positive, decrementing it once per call —
// calls are expected once per scheduler cycle, matching the real facade's
// once-per-iteration snapshot.
func (m *MockFacade) CoresBusyFlags() FlagWord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var f FlagWord
	for i := uint64(0); i < m.coresCount; i++ {
		s := m.cores[i]
		if s == nil {
			continue
		}
		if s.busyCyclesRemaining > 0 {
			setBit(&f, uint(i))
			s.busyCyclesRemaining--
		}
	}
	return f
}

func (m *MockFacade) CoresValidFlags() FlagWord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var f FlagWord
	for i := uint64(0); i < m.coresCount; i++ {
		s := m.cores[i]
		if s == nil {
			continue
		}
		if s.busyCyclesRemaining == 0 && s.started && s.valid {
			setBit(&f, uint(i))
		}
	}
	return f
}

func setBit(f *FlagWord, i uint) {
	if i < 64 {
		f.Lo |= uint64(1) << i
	} else {
		f.Hi |= uint64(1) << (i - 64)
	}
}

func (m *MockFacade) CoreResult() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coreResult
}

func (m *MockFacade) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Testing utility accessors.

func (m *MockFacade) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockFacade) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"command": m.commandCalls,
		"reset":   m.resetCalls,
		"start":   m.startCalls,
		"load":    m.loadCalls,
	}
}
