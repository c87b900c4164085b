package runtime

import "sync"

// symbolTable is the process-wide name -> *Symbol interner. The mutex
// keeps interning safe if a driver ever exposes concurrent entry
// points; single-threaded observable behavior is unchanged.
var symbolTable = struct {
	mu      sync.Mutex
	symbols map[string]*Symbol
}{symbols: make(map[string]*Symbol)}

// Intern returns the existing record for name, creating one on first
// use. Idempotent: repeated calls with an equal name return the same
// pointer.
func Intern(name string) *Symbol {
	symbolTable.mu.Lock()
	defer symbolTable.mu.Unlock()
	if sym, ok := symbolTable.symbols[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name}
	symbolTable.symbols[name] = sym
	return sym
}

// InternCString interns a NUL-terminated byte sequence, the shape
// compiled code holds for symbol literals baked into the IR. It scans
// for the terminating 0 byte rather than requiring the caller to know
// the length up front.
func InternCString(cstr []byte) *Symbol {
	n := 0
	for n < len(cstr) && cstr[n] != 0 {
		n++
	}
	return Intern(string(cstr[:n]))
}

// Bind sets sym's function binding. Observable from LookupFunction
// immediately, since the table is guarded by the same mutex.
func Bind(sym *Symbol, fn *FunctionDescriptor) {
	symbolTable.mu.Lock()
	defer symbolTable.mu.Unlock()
	sym.Function = fn
}

// LookupFunction reads sym's function binding; nil if unbound.
func LookupFunction(sym *Symbol) *FunctionDescriptor {
	symbolTable.mu.Lock()
	defer symbolTable.mu.Unlock()
	return sym.Function
}
