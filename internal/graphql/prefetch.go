package graphql

import (
	"github.com/rpattn/socialql/internal/executor"
	"github.com/rpattn/socialql/internal/repository"

	"github.com/vektah/gqlparser/v2/ast"
)

// UsersPlan tells the root users resolver which subscription edges to join
// into its single fetch.
type UsersPlan struct {
	// IncludeSubscriptions is set when userSubscribedTo is selected on users.
	IncludeSubscriptions bool
	// IncludeFollowers is set when subscribedToUser is selected on users.
	IncludeFollowers bool
}

// Include converts the plan into store include flags.
func (p UsersPlan) Include() repository.Include {
	return repository.Include{
		UserSubscribedTo: p.IncludeSubscriptions,
		SubscribedToUser: p.IncludeFollowers,
	}
}

// PlanUsers inspects the selections made directly under every root users
// field of op, honoring fragments and @skip/@include.
func PlanUsers(doc *ast.QueryDocument, op *ast.OperationDefinition, vars map[string]any) UsersPlan {
	var plan UsersPlan
	visitFields(doc, op.SelectionSet, vars, func(root *ast.Field) {
		if root.Name != "users" {
			return
		}
		visitFields(doc, root.SelectionSet, vars, func(f *ast.Field) {
			switch f.Name {
			case "userSubscribedTo":
				plan.IncludeSubscriptions = true
			case "subscribedToUser":
				plan.IncludeFollowers = true
			}
		})
	})
	return plan
}

// visitFields calls fn for every field of set, looking through fragments.
func visitFields(doc *ast.QueryDocument, set ast.SelectionSet, vars map[string]any, fn func(*ast.Field)) {
	seen := make(map[string]bool)
	var walk func(ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *ast.Field:
				if executor.ShouldInclude(sel.Directives, vars) {
					fn(sel)
				}
			case *ast.InlineFragment:
				if executor.ShouldInclude(sel.Directives, vars) {
					walk(sel.SelectionSet)
				}
			case *ast.FragmentSpread:
				if !executor.ShouldInclude(sel.Directives, vars) || seen[sel.Name] {
					continue
				}
				seen[sel.Name] = true
				def := sel.Definition
				if def == nil {
					def = doc.Fragments.ForName(sel.Name)
				}
				if def != nil {
					walk(def.SelectionSet)
				}
			}
		}
	}
	walk(set)
}
