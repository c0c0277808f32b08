package mir

import (
	"fmt"
	"sort"
	"strings"
)

// Print renders a program deterministically; the optimizer's
// idempotence property is checked by comparing these renderings.
func Print(prog *Program) string {
	var b strings.Builder
	for _, ext := range prog.ExternFns {
		params := make([]string, len(ext.Params))
		for i, p := range ext.Params {
			params[i] = p.String()
		}
		fmt.Fprintf(&b, "extern %q fn %s(%s) -> %s\n",
			ext.Module, ext.Name, strings.Join(params, ", "), ext.RetTy)
	}

	structNames := make([]string, 0, len(prog.Structs))
	for name := range prog.Structs {
		structNames = append(structNames, name)
	}
	sort.Strings(structNames)
	for _, name := range structNames {
		fmt.Fprintf(&b, "struct %s {", name)
		for i, f := range prog.Structs[name] {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " %s: %s", f.Name, f.Ty)
		}
		b.WriteString(" }\n")
	}

	for _, fn := range prog.Functions {
		b.WriteString(PrintFunction(fn))
	}
	return b.String()
}

// PrintFunction renders one function.
func PrintFunction(fn *Function) string {
	var b strings.Builder

	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Ty)
	}
	fmt.Fprintf(&b, "fn %s(%s) -> %s", fn.Name, strings.Join(params, ", "), fn.RetTy)

	var marks []string
	if fn.IsPure {
		marks = append(marks, "pure")
	}
	if fn.IsConst {
		marks = append(marks, "const")
	}
	if fn.AlwaysInline {
		marks = append(marks, "alwaysinline")
	}
	if fn.InlineHint {
		marks = append(marks, "inlinehint")
	}
	if len(marks) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(marks, " "))
	}
	b.WriteString(" {\n")

	for _, fact := range fn.Preconditions {
		fmt.Fprintf(&b, "  ; pre %s\n", fact)
	}
	for _, fact := range fn.Postconditions {
		fmt.Fprintf(&b, "  ; post %s\n", fact)
	}

	for _, block := range fn.Blocks {
		fmt.Fprintf(&b, "%s:\n", block.Label)
		for _, inst := range block.Insts {
			fmt.Fprintf(&b, "  %s\n", printInst(inst))
		}
		fmt.Fprintf(&b, "  %s\n", printTerm(block.Term))
	}
	b.WriteString("}\n")
	return b.String()
}

func printInst(inst Inst) string {
	switch i := inst.(type) {
	case *ConstInst:
		return fmt.Sprintf("%s = const %s", i.Dest, i.Value)
	case *CopyInst:
		return fmt.Sprintf("%s = copy %s", i.Dest, i.Src)
	case *BinOpInst:
		return fmt.Sprintf("%s = %s %s, %s", i.Dest, i.Op, i.Lhs, i.Rhs)
	case *UnaryOpInst:
		return fmt.Sprintf("%s = %s %s", i.Dest, i.Op, i.Src)
	case *CastInst:
		return fmt.Sprintf("%s = cast %s : %s -> %s", i.Dest, i.Src, i.From, i.To)
	case *PhiInst:
		parts := make([]string, len(i.Values))
		for n, v := range i.Values {
			parts[n] = fmt.Sprintf("[%s, %s]", v.Value, v.Label)
		}
		return fmt.Sprintf("%s = phi %s", i.Dest, strings.Join(parts, " "))
	case *CallInst:
		args := make([]string, len(i.Args))
		for n, a := range i.Args {
			args[n] = a.String()
		}
		call := fmt.Sprintf("call %s(%s)", i.Func, strings.Join(args, ", "))
		if i.IsTail {
			call = "tail " + call
		}
		if i.Dest != nil {
			return fmt.Sprintf("%s = %s", i.Dest, call)
		}
		return call
	case *StructInitInst:
		fields := make([]string, len(i.Fields))
		for n, f := range i.Fields {
			fields[n] = fmt.Sprintf("%s: %s", f.Name, f.Value)
		}
		return fmt.Sprintf("%s = struct %s { %s }", i.Dest, i.StructName, strings.Join(fields, ", "))
	case *FieldAccessInst:
		return fmt.Sprintf("%s = field %s.%s #%d (%s)", i.Dest, i.Base, i.Field, i.FieldIndex, i.StructName)
	case *FieldStoreInst:
		return fmt.Sprintf("store field %s.%s #%d (%s) = %s", i.Base, i.Field, i.FieldIndex, i.StructName, i.Value)
	case *TupleInitInst:
		elems := make([]string, len(i.Elements))
		for n, e := range i.Elements {
			elems[n] = e.Value.String()
		}
		return fmt.Sprintf("%s = tuple (%s)", i.Dest, strings.Join(elems, ", "))
	case *TupleExtractInst:
		return fmt.Sprintf("%s = extract %s.%d : %s", i.Dest, i.Tuple, i.Index, i.ElemType)
	case *EnumVariantInst:
		args := make([]string, len(i.Args))
		for n, a := range i.Args {
			args[n] = a.String()
		}
		return fmt.Sprintf("%s = enum %s::%s #%d (%s)", i.Dest, i.EnumName, i.Variant, i.Discriminant, strings.Join(args, ", "))
	case *ArrayAllocInst:
		return fmt.Sprintf("%s = alloc [%s; %d]", i.Dest, i.ElemType, i.Size)
	case *ArrayInitInst:
		elems := make([]string, len(i.Elements))
		for n, e := range i.Elements {
			elems[n] = e.String()
		}
		return fmt.Sprintf("%s = array [%s] : %s", i.Dest, strings.Join(elems, ", "), i.ElemType)
	case *IndexLoadInst:
		suffix := ""
		if i.NoBoundsCheck {
			suffix = " nobounds"
		}
		return fmt.Sprintf("%s = load %s[%s] : %s%s", i.Dest, i.Array, i.Index, i.ElemType, suffix)
	case *IndexStoreInst:
		suffix := ""
		if i.NoBoundsCheck {
			suffix = " nobounds"
		}
		return fmt.Sprintf("store %s[%s] = %s : %s%s", i.Array, i.Index, i.Value, i.ElemType, suffix)
	case *PtrOffsetInst:
		return fmt.Sprintf("%s = ptroffset %s + %s : %s", i.Dest, i.Ptr, i.Offset, i.ElemType)
	case *PtrLoadInst:
		suffix := ""
		if i.NoNullCheck {
			suffix = " nonull"
		}
		return fmt.Sprintf("%s = ptrload %s : %s%s", i.Dest, i.Ptr, i.ElemType, suffix)
	case *PtrStoreInst:
		suffix := ""
		if i.NoNullCheck {
			suffix = " nonull"
		}
		return fmt.Sprintf("ptrstore %s = %s : %s%s", i.Ptr, i.Value, i.ElemType, suffix)
	case *ThreadSpawnInst:
		caps := make([]string, len(i.Captures))
		for n, c := range i.Captures {
			caps[n] = c.String()
		}
		return fmt.Sprintf("%s = spawn %s(%s)", i.Dest, i.Func, strings.Join(caps, ", "))
	case *ThreadJoinInst:
		if i.Dest != nil {
			return fmt.Sprintf("%s = join %s", i.Dest, i.Handle)
		}
		return fmt.Sprintf("join %s", i.Handle)
	case *MutexNewInst:
		return fmt.Sprintf("%s = mutex.new %s", i.Dest, i.Initial)
	case *MutexLockInst:
		return fmt.Sprintf("%s = mutex.lock %s", i.Dest, i.Mutex)
	case *MutexUnlockInst:
		return fmt.Sprintf("mutex.unlock %s = %s", i.Mutex, i.NewValue)
	case *MutexTryLockInst:
		return fmt.Sprintf("%s = mutex.trylock %s", i.Dest, i.Mutex)
	case *MutexFreeInst:
		return fmt.Sprintf("mutex.free %s", i.Mutex)
	case *ChannelNewInst:
		return fmt.Sprintf("%s, %s = channel.new %s", i.SenderDest, i.ReceiverDest, i.Capacity)
	case *ChannelSendInst:
		return fmt.Sprintf("channel.send %s <- %s", i.Sender, i.Value)
	case *ChannelTrySendInst:
		return fmt.Sprintf("%s = channel.trysend %s <- %s", i.Dest, i.Sender, i.Value)
	case *ChannelRecvInst:
		return fmt.Sprintf("%s = channel.recv %s", i.Dest, i.Receiver)
	case *ChannelTryRecvInst:
		return fmt.Sprintf("%s = channel.tryrecv %s", i.Dest, i.Receiver)
	case *SenderCloneInst:
		return fmt.Sprintf("%s = sender.clone %s", i.Dest, i.Sender)
	}
	return "?"
}

func printTerm(t Terminator) string {
	switch term := t.(type) {
	case *ReturnTerm:
		if term.Value == nil {
			return "return"
		}
		return fmt.Sprintf("return %s", term.Value)
	case *GotoTerm:
		return fmt.Sprintf("goto %s", term.Label)
	case *BranchTerm:
		return fmt.Sprintf("branch %s ? %s : %s", term.Cond, term.Then, term.Else)
	case *SwitchTerm:
		cases := make([]string, len(term.Cases))
		for i, c := range term.Cases {
			cases[i] = fmt.Sprintf("%d -> %s", c.Value, c.Label)
		}
		return fmt.Sprintf("switch %s [%s] default %s", term.Disc, strings.Join(cases, ", "), term.Default)
	case *UnreachableTerm:
		return "unreachable"
	}
	return "?"
}
