package micro

// Instr is one micro-instruction: an opcode, a small emit-flags bitset, the
// operand count, and a reference into the operand store. The operand slice
// length is immutable once created; its contents are mutable in place.
type Instr struct {
	Op          Opcode
	EmitFlags   uint8
	NumOperands uint8
	Ops         OpsRef
}

type node struct {
	instr      Instr
	prev, next InstrRef
	alive      bool
}

// Store is an intrusive doubly-linked list of Instr, slab-allocated so that
// references stay stable across insertion and are only reused once a freed
// slot has been observed dead and popped from the free list.
type Store struct {
	nodes    []node
	freeList []InstrRef
	head     InstrRef
	tail     InstrRef
	count    uint32
}

// NewStore returns an empty instruction store.
func NewStore() *Store {
	return &Store{head: InstrRefInvalid, tail: InstrRefInvalid}
}

// Count returns the number of live instructions.
func (s *Store) Count() uint32 { return s.count }

// Clear resets the store to empty, keeping the underlying slab for reuse.
func (s *Store) Clear() {
	s.nodes = s.nodes[:0]
	s.freeList = s.freeList[:0]
	s.head = InstrRefInvalid
	s.tail = InstrRefInvalid
	s.count = 0
}

// Alive reports whether ref refers to a live (not yet erased) instruction.
func (s *Store) Alive(ref InstrRef) bool {
	if ref < 0 || int(ref) >= len(s.nodes) {
		return false
	}
	return s.nodes[ref].alive
}

// Ptr returns a pointer to the Instr at ref, or nil if ref is not alive.
func (s *Store) Ptr(ref InstrRef) *Instr {
	if !s.Alive(ref) {
		return nil
	}
	return &s.nodes[ref].instr
}

func (s *Store) allocNode() InstrRef {
	if n := len(s.freeList); n > 0 {
		ref := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		return ref
	}
	s.nodes = append(s.nodes, node{})
	return InstrRef(len(s.nodes) - 1)
}

// EmplaceUninit appends a new, uninitialized-opcode instruction at the tail
// and returns its stable reference plus a pointer to populate.
func (s *Store) EmplaceUninit() (InstrRef, *Instr) {
	ref := s.allocNode()
	n := &s.nodes[ref]
	*n = node{alive: true, prev: s.tail, next: InstrRefInvalid}
	if s.tail != InstrRefInvalid {
		s.nodes[s.tail].next = ref
	} else {
		s.head = ref
	}
	s.tail = ref
	s.count++
	return ref, &n.instr
}

// InsertBefore allocates a new instruction with the given opcode and
// operand reference, splicing it in immediately before beforeRef.
func (s *Store) InsertBefore(beforeRef InstrRef, op Opcode, opsRef OpsRef, numOperands uint8) InstrRef {
	ref := s.allocNode()
	prevRef := s.nodes[beforeRef].prev
	n := &s.nodes[ref]
	*n = node{
		instr: Instr{Op: op, Ops: opsRef, NumOperands: numOperands},
		alive: true, prev: prevRef, next: beforeRef,
	}
	s.nodes[beforeRef].prev = ref
	if prevRef != InstrRefInvalid {
		s.nodes[prevRef].next = ref
	} else {
		s.head = ref
	}
	s.count++
	return ref
}

// Erase logically removes ref from the list. Returns false (a no-op) if ref
// was already dead, matching a double-erase being observably idempotent
// rather than a crash.
func (s *Store) Erase(ref InstrRef) bool {
	if !s.Alive(ref) {
		return false
	}
	n := &s.nodes[ref]
	if n.prev != InstrRefInvalid {
		s.nodes[n.prev].next = n.next
	} else {
		s.head = n.next
	}
	if n.next != InstrRefInvalid {
		s.nodes[n.next].prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.alive = false
	n.prev = InstrRefInvalid
	n.next = InstrRefInvalid
	s.freeList = append(s.freeList, ref)
	s.count--
	return true
}

// View returns the head-to-tail live-node iteration start. Use Next to walk
// forward and Prev to walk backward; both skip nothing because dead nodes
// are unlinked from the chain at Erase time.
func (s *Store) View() Iterator { return Iterator{s: s, cur: s.head} }

// ReverseView starts iteration from the tail.
func (s *Store) ReverseView() Iterator { return Iterator{s: s, cur: s.tail} }

// Iterator walks live instructions in list order. It is stable across
// insertions but not across erasure of the node it currently points at —
// callers that erase the current node must advance first (see pass/legalize.go).
type Iterator struct {
	s   *Store
	cur InstrRef
}

// Ref returns the current instruction's reference.
func (it Iterator) Ref() InstrRef { return it.cur }

// Valid reports whether the iterator still points at a live instruction.
func (it Iterator) Valid() bool { return it.s.Alive(it.cur) }

// Instr returns a pointer to the current instruction.
func (it Iterator) Instr() *Instr { return it.s.Ptr(it.cur) }

// Next advances to the following live instruction.
func (it Iterator) Next() Iterator { return Iterator{s: it.s, cur: it.s.nodes[it.cur].next} }

// Prev moves to the preceding live instruction.
func (it Iterator) Prev() Iterator { return Iterator{s: it.s, cur: it.s.nodes[it.cur].prev} }

// OperandStore is an append-only array of Operand tuples referenced by
// Instr.Ops. Operands belonging to an erased instruction become unreachable
// but are not reclaimed: fragmentation is acceptable given builder-scoped
// lifetime (one OperandStore per function compilation).
type OperandStore struct {
	operands []Operand
}

// NewOperandStore returns an empty operand store.
func NewOperandStore() *OperandStore { return &OperandStore{} }

// EmplaceUninitArray reserves n contiguous, zero-valued operand slots and
// returns a reference to the span plus a slice view of it.
func (s *OperandStore) EmplaceUninitArray(n int) (OpsRef, []Operand) {
	ref := OpsRef(len(s.operands))
	s.operands = append(s.operands, make([]Operand, n)...)
	return ref, s.operands[ref : int(ref)+n]
}

// Slice returns the n operands starting at ref.
func (s *OperandStore) Slice(ref OpsRef, n int) []Operand {
	return s.operands[ref : int(ref)+n]
}

// Clear empties the store, keeping the backing array for reuse.
func (s *OperandStore) Clear() {
	s.operands = s.operands[:0]
}

// Count returns the number of operand slots ever allocated (including ones
// belonging to erased instructions).
func (s *OperandStore) Count() int { return len(s.operands) }
