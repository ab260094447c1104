package main

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// forkear crea un hijo copiando al proceso actual. El hijo corre programa
// (o el mismo programa del padre si es nil) y ve 0 como retorno del fork.
func (p *Proc) forkear(programa func(*Proc), nombre string, esSistema bool) int {
	k := p.k

	np := k.crearProceso(p.cpu)
	if np == nil {
		return -1
	}

	np.espacio = nuevoEspacio(k.config.EntradasTLB)
	if err := k.copiarEspacio(p, np); err != nil {
		utils.ErrorLog.Error("Fork sin memoria para copiar el espacio", "pid", p.pid, "error", err)
		k.memoria.liberarMarco(np.kstack)
		np.kstack = -1
		np.espacio = nil
		close(np.contexto.listo)
		np.contexto = nil
		np.estado = EstadoUnused
		np.pid = 0
		return -1
	}
	np.tam = p.tam
	np.padre = p
	*np.trapframe = *p.trapframe

	// El hijo ve 0 como retorno de la syscall
	np.trapframe.AX = 0
	np.prioridad = p.prioridad

	for i := 0; i < NOFILE; i++ {
		if p.ofile[i] != nil {
			np.ofile[i] = p.ofile[i].Dup()
		}
	}
	if p.cwd != nil {
		np.cwd = p.cwd.Dup()
	}

	np.nombre = nombre
	np.esSistema = esSistema
	if programa != nil {
		np.programa = programa
	} else {
		np.programa = p.programa
	}

	pid := np.pid
	utils.InfoLog.Info(fmt.Sprintf("(%d) - Se crea el proceso - Padre: %d", pid, p.pid))

	k.ptable.lock.Adquirir(p.cpu)
	np.estado = EstadoRunnable
	k.ptable.lock.Liberar(p.cpu)

	return pid
}

// Exit termina el proceso actual. No retorna: queda ZOMBIE hasta que el
// padre lo coseche con wait. Que salga init es fatal.
func (p *Proc) Exit() {
	k := p.k

	if p == k.initProc {
		panic("init saliendo")
	}

	// Cerrar todos los archivos abiertos
	for fd := 0; fd < NOFILE; fd++ {
		if p.ofile[fd] != nil {
			p.ofile[fd].Cerrar()
			p.ofile[fd] = nil
		}
	}

	// Un hijo directo de la shell arrastra la limpieza de los archivos de
	// página que quedaron en manos de los demonios de swap
	if p.padre != nil && p.padre.nombre == nombreShell {
		k.limpiarArchivosSwap(p.cpu, p.pid)
	}

	if p.cwd != nil {
		k.fs.BeginOp()
		p.cwd.Soltar()
		k.fs.EndOp()
		p.cwd = nil
	}

	k.ptable.lock.Adquirir(p.cpu)

	// El padre puede estar durmiendo en wait
	if p.padre != nil {
		k.despertar1(p.padre)
	}

	// Los huérfanos pasan a init
	for i := range k.ptable.procs {
		q := &k.ptable.procs[i]
		if q.padre == p {
			q.padre = k.initProc
			if q.estado == EstadoZombie {
				k.despertar1(k.initProc)
			}
		}
	}

	utils.InfoLog.Info(fmt.Sprintf("(%d) - Finaliza el proceso %s", p.pid, p.nombre))

	// Saltar al planificador, para no volver nunca
	p.estado = EstadoZombie
	k.sched(p.cpu, p)
	panic("zombie exit")
}

// esperar busca un hijo ZOMBIE, lo cosecha y devuelve su pid; captura corre
// sobre el hijo antes de limpiar el slot. Devuelve -1 sin hijos o con el
// proceso marcado.
func (p *Proc) esperar(captura func(*Proc)) int {
	k := p.k

	k.ptable.lock.Adquirir(p.cpu)
	for {
		huboHijos := false
		for i := range k.ptable.procs {
			q := &k.ptable.procs[i]
			if q.padre != p {
				continue
			}
			huboHijos = true
			if q.estado != EstadoZombie {
				continue
			}

			// Cosechar: liberar recursos y dejar el slot limpio
			if captura != nil {
				captura(q)
			}
			pid := q.pid
			if q.kstack >= 0 {
				k.memoria.liberarMarco(q.kstack)
				q.kstack = -1
			}
			k.liberarEspacio(q, q.tam)
			q.espacio = nil
			q.pid = 0
			q.padre = nil
			q.nombre = ""
			q.matado = false
			q.canal = nil
			q.ctime = 0
			q.retime = 0
			q.rutime = 0
			q.stime = 0
			q.prioridad = 0
			q.ticksRafaga = 0
			q.tam = 0
			q.satisfecho = false
			q.trapva = 0
			q.trapframe = nil
			q.contexto = nil
			q.programa = nil
			q.esSistema = false
			q.estado = EstadoUnused

			k.ptable.lock.Liberar(p.cpu)
			return pid
		}

		// Sin hijos no hay nada que esperar
		if !huboHijos || p.matado {
			k.ptable.lock.Liberar(p.cpu)
			return -1
		}

		// Esperar a que algún hijo salga (ver despertar1 en Exit)
		k.dormir(p, p, &k.ptable.lock)
	}
}

// crecer agranda o achica el espacio del proceso en n bytes
func (p *Proc) crecer(n int) int {
	k := p.k

	tam := p.tam
	if n > 0 {
		nuevo, err := k.asignarEspacioUsuario(p, tam, tam+n)
		if err != nil {
			return -1
		}
		tam = nuevo
	} else if n < 0 {
		if tam+n < 0 {
			return -1
		}
		tam = k.liberarEspacioUsuario(p, tam, tam+n)
	}
	p.tam = tam
	p.cpu.espacioActivo = p.espacio
	return 0
}

// setPrio fija la prioridad del proceso; devuelve distinto de cero fuera de
// rango
func (p *Proc) setPrio(prioridad int) int {
	if prioridad < 1 || prioridad > 3 {
		return 1
	}
	k := p.k
	k.ptable.lock.Adquirir(p.cpu)
	p.prioridad = prioridad
	k.ptable.lock.Liberar(p.cpu)
	return 0
}

// decPrio baja la prioridad un nivel, con piso en 1
func (p *Proc) decPrio() {
	k := p.k
	k.ptable.lock.Adquirir(p.cpu)
	if p.prioridad > 1 {
		p.prioridad--
	}
	k.ptable.lock.Liberar(p.cpu)
}
