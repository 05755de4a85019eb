/*
Package registry is the "factory classmethod keyed by name" from the
teacher domain's class-inheritance component/worker split (spec §9
Design Notes, "Polymorphism"), re-architected for Go as a plain name ->
constructor map. pkg/stages registers its stage constructors in init,
under names a session configuration file can reference (component
descriptor's "kind"); cmd/pilot and cmd/pilot-agent import it for that
side effect. pkg/launch.Suppressed and the re-exec'd cmd/pilot-agent use
the same registry to construct a component from nothing but its kind
and ComponentConfig.
*/
package registry
