// Package formula compiles the survey formula language and evaluates it
// against dataset rows.
//
// A clause is one or more bracketed conditions joined by "and":
//
//	["Age">=18] and ["Brands"C1,2]
//
// Rule formulas put one "<output>: <clause>" per line and are scanned top to
// bottom. Class formulas use the placeholder X instead of a bracketed name
// (`X>=18 and X<30`), and numeric recodes use arithmetic expressions over
// bracketed references (`["A"]+["B"]`).
//
// Compiling resolves every variable against a Resolver so that unknown names
// and operators that do not fit the variable type fail before any row is
// read. Evaluation is pure: a missing response makes a condition false and a
// division by zero makes an expression missing.
package formula
