// std_scripts.go — built-in instruction scripts.
//
// Each entry pairs tutor-facing documentation with the command text that
// defines the instruction's default behavior. The shell's `docs` command
// shows the prose; `edit` writes the whole document out for modification.
package hpvm

type stdScript struct {
	doc string
	src string
}

var stdScripts = map[InstrKind]stdScript{

	ILabel: {
		doc: `Marks a procedure entry point. The loader records where each label
lives before the program starts, so stepping onto one does nothing but
move on.`,
		src: `next`,
	},

	IGetStructure: {
		doc: `Matches the argument register $1 against the structure $2.

If the dereferenced argument is a free variable, the structure does not
exist yet: build it at the top of the heap, bind the variable to it,
record the binding on the trail, and switch to write mode so the
following unify instructions create the arguments.

If the argument is already a structure with the same functor, switch to
read mode and point the structure cursor S at its first argument so the
following unify instructions walk the existing arguments.

Anything else cannot match, which is a failure of the simulated
program, not an error in this one.`,
		src: `.addr <- deref($1)
if ask(.addr) = :unbound
  .str <- push(Str($2, hp[+1].&))
  bind(.addr, Ref(.str))
  push(trail, .addr)
  mode <- :write
  next
else
  .cell <- .addr.*
  if tag(.cell) = :str
    if functor(.cell) = $2
      S <- args(.cell)
      mode <- :read
      next
    else
      fail
    end
  else
    fail
  end
end`,
	},

	IUnifyVariable: {
		doc: `Loads the next structure argument into register $1.

In read mode the argument already exists: point $1 at the cell under
the structure cursor and advance the cursor. In write mode the argument
is being invented: push a fresh unbound variable and point $1 at it.`,
		src: `if mode = :read
  $1 <- S
  S <- S[+1].&
else
  $1 <- push(Ref(hp))
end
next`,
	},

	IUnifyValue: {
		doc: `Unifies register $1 with the next structure argument.

In read mode, unify the two dereferenced cells: a free side binds to
the other (and is trailed); two bound cells must already agree or the
match fails. Structures are compared by identity here; deep structural
unification is left for an edited script. In write mode, push a
reference to $1's cell as the next argument.`,
		src: `if mode = :read
  .a <- deref($1)
  .b <- deref(S)
  if ask(.a) = :unbound
    bind(.a, Ref(.b))
    push(trail, .a)
  else
    if ask(.b) = :unbound
      bind(.b, Ref(.a))
      push(trail, .b)
    else
      if .a.* != .b.*
        fail
      end
    end
  end
  S <- S[+1].&
else
  push(Ref($1))
end
next`,
	},

	IGetVariable: {
		doc: `Copies argument register $2 into register $1. Used when a clause
head meets an argument for the first time, so no checking is needed.`,
		src: `$1 <- $2
next`,
	},

	IGetValue: {
		doc: `Unifies register $1 with argument register $2. Both already hold
addresses; dereference each and unify one level, trailing whichever
free side gets bound. Two bound cells must agree or the match fails.`,
		src: `.a <- deref($1)
.b <- deref($2)
if ask(.a) = :unbound
  bind(.a, Ref(.b))
  push(trail, .a)
else
  if ask(.b) = :unbound
    bind(.b, Ref(.a))
    push(trail, .b)
  else
    if .a.* != .b.*
      fail
    end
  end
end
next`,
	},

	IPutStructure: {
		doc: `Builds a new structure $2 on the heap and points register $1 at it.
Switches to write mode so the following set instructions supply the
arguments.`,
		src: `.str <- push(Str($2, hp[+1].&))
$1 <- .str
mode <- :write
next`,
	},

	IPutVariable: {
		doc: `Introduces a fresh unbound variable, pointing both register $1 and
argument register $2 at it. Used when a goal passes a variable that has
not appeared before.`,
		src: `.v <- push(Ref(hp))
$1 <- .v
$2 <- .v
next`,
	},

	IPutValue: {
		doc: `Copies register $1 into argument register $2, passing an existing
term as a goal argument.`,
		src: `$2 <- $1
next`,
	},

	ISetVariable: {
		doc: `Pushes a fresh unbound variable as the next argument of the
structure being built and points register $1 at it.`,
		src: `.v <- push(Ref(hp))
$1 <- .v
next`,
	},

	ISetValue: {
		doc: `Pushes a reference to register $1's cell as the next argument of
the structure being built.`,
		src: `push(Ref($1))
next`,
	},

	ICall: {
		doc: `Calls the procedure at label $1. Saves the address of the following
instruction as the continuation, then jumps. The environment-variable
count $2 is carried for bookkeeping; this machine allocates no frames.`,
		src: `cp <- ip[+1].&
jump $1`,
	},

	IExecute: {
		doc: `Jumps to the procedure at label $1 without saving a continuation:
a last-call tail transfer. Whoever called us will be returned to by the
callee's proceed.`,
		src: `jump $1`,
	},

	IProceed: {
		doc: `Returns from the current procedure by jumping to the saved
continuation.`,
		src: `jump cp`,
	},
}
