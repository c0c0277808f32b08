package mir

// Central operand plumbing. Every pass that treats instructions
// generically goes through these exhaustive switches; adding an
// instruction without extending them is caught by the MIR checker's
// operand-typing pass in tests.

// InstDest returns the place an instruction defines, if any.
func InstDest(inst Inst) (Place, bool) {
	switch i := inst.(type) {
	case *ConstInst:
		return i.Dest, true
	case *CopyInst:
		return i.Dest, true
	case *BinOpInst:
		return i.Dest, true
	case *UnaryOpInst:
		return i.Dest, true
	case *CastInst:
		return i.Dest, true
	case *PhiInst:
		return i.Dest, true
	case *CallInst:
		if i.Dest != nil {
			return *i.Dest, true
		}
	case *StructInitInst:
		return i.Dest, true
	case *FieldAccessInst:
		return i.Dest, true
	case *TupleInitInst:
		return i.Dest, true
	case *TupleExtractInst:
		return i.Dest, true
	case *EnumVariantInst:
		return i.Dest, true
	case *ArrayAllocInst:
		return i.Dest, true
	case *ArrayInitInst:
		return i.Dest, true
	case *IndexLoadInst:
		return i.Dest, true
	case *PtrOffsetInst:
		return i.Dest, true
	case *PtrLoadInst:
		return i.Dest, true
	case *ThreadSpawnInst:
		return i.Dest, true
	case *ThreadJoinInst:
		if i.Dest != nil {
			return *i.Dest, true
		}
	case *MutexNewInst:
		return i.Dest, true
	case *MutexLockInst:
		return i.Dest, true
	case *MutexTryLockInst:
		return i.Dest, true
	case *ChannelTrySendInst:
		return i.Dest, true
	case *ChannelRecvInst:
		return i.Dest, true
	case *ChannelTryRecvInst:
		return i.Dest, true
	case *SenderCloneInst:
		return i.Dest, true
	}
	return Place{}, false
}

// InstOperands returns every operand an instruction reads.
func InstOperands(inst Inst) []Operand {
	switch i := inst.(type) {
	case *ConstInst:
		return nil
	case *CopyInst:
		return []Operand{i.Src}
	case *BinOpInst:
		return []Operand{i.Lhs, i.Rhs}
	case *UnaryOpInst:
		return []Operand{i.Src}
	case *CastInst:
		return []Operand{i.Src}
	case *PhiInst:
		out := make([]Operand, len(i.Values))
		for n, v := range i.Values {
			out[n] = v.Value
		}
		return out
	case *CallInst:
		return append([]Operand(nil), i.Args...)
	case *StructInitInst:
		out := make([]Operand, len(i.Fields))
		for n, f := range i.Fields {
			out[n] = f.Value
		}
		return out
	case *FieldAccessInst:
		return []Operand{i.Base}
	case *FieldStoreInst:
		return []Operand{i.Base, i.Value}
	case *TupleInitInst:
		out := make([]Operand, len(i.Elements))
		for n, e := range i.Elements {
			out[n] = e.Value
		}
		return out
	case *TupleExtractInst:
		return []Operand{i.Tuple}
	case *EnumVariantInst:
		return append([]Operand(nil), i.Args...)
	case *ArrayAllocInst:
		return nil
	case *ArrayInitInst:
		return append([]Operand(nil), i.Elements...)
	case *IndexLoadInst:
		return []Operand{i.Array, i.Index}
	case *IndexStoreInst:
		return []Operand{i.Array, i.Index, i.Value}
	case *PtrOffsetInst:
		return []Operand{i.Ptr, i.Offset}
	case *PtrLoadInst:
		return []Operand{i.Ptr}
	case *PtrStoreInst:
		return []Operand{i.Ptr, i.Value}
	case *ThreadSpawnInst:
		return append([]Operand(nil), i.Captures...)
	case *ThreadJoinInst:
		return []Operand{i.Handle}
	case *MutexNewInst:
		return []Operand{i.Initial}
	case *MutexLockInst:
		return []Operand{i.Mutex}
	case *MutexUnlockInst:
		return []Operand{i.Mutex, i.NewValue}
	case *MutexTryLockInst:
		return []Operand{i.Mutex}
	case *MutexFreeInst:
		return []Operand{i.Mutex}
	case *ChannelNewInst:
		return []Operand{i.Capacity}
	case *ChannelSendInst:
		return []Operand{i.Sender, i.Value}
	case *ChannelTrySendInst:
		return []Operand{i.Sender, i.Value}
	case *ChannelRecvInst:
		return []Operand{i.Receiver}
	case *ChannelTryRecvInst:
		return []Operand{i.Receiver}
	case *SenderCloneInst:
		return []Operand{i.Sender}
	}
	return nil
}

// ReplaceOperands rewrites every read operand through f. Phi operands
// are excluded; copy propagation must never cross a phi.
func ReplaceOperands(inst Inst, f func(Operand) Operand) {
	switch i := inst.(type) {
	case *ConstInst, *ArrayAllocInst, *PhiInst:
		// No rewritable operands.
	case *CopyInst:
		if p, ok := f(i.Src).(Place); ok {
			i.Src = p
		}
	case *BinOpInst:
		i.Lhs = f(i.Lhs)
		i.Rhs = f(i.Rhs)
	case *UnaryOpInst:
		i.Src = f(i.Src)
	case *CastInst:
		i.Src = f(i.Src)
	case *CallInst:
		for n := range i.Args {
			i.Args[n] = f(i.Args[n])
		}
	case *StructInitInst:
		for n := range i.Fields {
			i.Fields[n].Value = f(i.Fields[n].Value)
		}
	case *FieldAccessInst:
		if p, ok := f(i.Base).(Place); ok {
			i.Base = p
		}
	case *FieldStoreInst:
		if p, ok := f(i.Base).(Place); ok {
			i.Base = p
		}
		i.Value = f(i.Value)
	case *TupleInitInst:
		for n := range i.Elements {
			i.Elements[n].Value = f(i.Elements[n].Value)
		}
	case *TupleExtractInst:
		if p, ok := f(i.Tuple).(Place); ok {
			i.Tuple = p
		}
	case *EnumVariantInst:
		for n := range i.Args {
			i.Args[n] = f(i.Args[n])
		}
	case *ArrayInitInst:
		for n := range i.Elements {
			i.Elements[n] = f(i.Elements[n])
		}
	case *IndexLoadInst:
		if p, ok := f(i.Array).(Place); ok {
			i.Array = p
		}
		i.Index = f(i.Index)
	case *IndexStoreInst:
		if p, ok := f(i.Array).(Place); ok {
			i.Array = p
		}
		i.Index = f(i.Index)
		i.Value = f(i.Value)
	case *PtrOffsetInst:
		i.Ptr = f(i.Ptr)
		i.Offset = f(i.Offset)
	case *PtrLoadInst:
		i.Ptr = f(i.Ptr)
	case *PtrStoreInst:
		i.Ptr = f(i.Ptr)
		i.Value = f(i.Value)
	case *ThreadSpawnInst:
		for n := range i.Captures {
			i.Captures[n] = f(i.Captures[n])
		}
	case *ThreadJoinInst:
		i.Handle = f(i.Handle)
	case *MutexNewInst:
		i.Initial = f(i.Initial)
	case *MutexLockInst:
		i.Mutex = f(i.Mutex)
	case *MutexUnlockInst:
		i.Mutex = f(i.Mutex)
		i.NewValue = f(i.NewValue)
	case *MutexTryLockInst:
		i.Mutex = f(i.Mutex)
	case *MutexFreeInst:
		i.Mutex = f(i.Mutex)
	case *ChannelNewInst:
		i.Capacity = f(i.Capacity)
	case *ChannelSendInst:
		i.Sender = f(i.Sender)
		i.Value = f(i.Value)
	case *ChannelTrySendInst:
		i.Sender = f(i.Sender)
		i.Value = f(i.Value)
	case *ChannelRecvInst:
		i.Receiver = f(i.Receiver)
	case *ChannelTryRecvInst:
		i.Receiver = f(i.Receiver)
	case *SenderCloneInst:
		i.Sender = f(i.Sender)
	}
}

// TermOperands returns the operands a terminator reads.
func TermOperands(t Terminator) []Operand {
	switch term := t.(type) {
	case *ReturnTerm:
		if term.Value != nil {
			return []Operand{term.Value}
		}
	case *BranchTerm:
		return []Operand{term.Cond}
	case *SwitchTerm:
		return []Operand{term.Disc}
	}
	return nil
}

// ReplaceTermOperands rewrites a terminator's operands through f.
func ReplaceTermOperands(t Terminator, f func(Operand) Operand) {
	switch term := t.(type) {
	case *ReturnTerm:
		if term.Value != nil {
			term.Value = f(term.Value)
		}
	case *BranchTerm:
		term.Cond = f(term.Cond)
	case *SwitchTerm:
		term.Disc = f(term.Disc)
	}
}

// HasSideEffects reports whether an instruction must survive even
// when its destination is dead.
func HasSideEffects(inst Inst) bool {
	switch inst.(type) {
	case *CallInst,
		*FieldStoreInst, *IndexStoreInst, *PtrStoreInst,
		*ThreadSpawnInst, *ThreadJoinInst,
		*MutexNewInst, *MutexLockInst, *MutexUnlockInst,
		*MutexTryLockInst, *MutexFreeInst,
		*ChannelNewInst, *ChannelSendInst, *ChannelTrySendInst,
		*ChannelRecvInst, *ChannelTryRecvInst, *SenderCloneInst:
		return true
	}
	return false
}

// IsPureCompute reports whether an instruction computes a value from
// its operands with no memory dependence; the cross-block CSE pass
// only touches these.
func IsPureCompute(inst Inst) bool {
	switch inst.(type) {
	case *BinOpInst, *UnaryOpInst, *CastInst:
		return true
	}
	return false
}
