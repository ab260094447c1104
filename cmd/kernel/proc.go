package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

const (
	// NPROC es la cantidad fija de slots de la tabla de procesos
	NPROC = 64
	// NOFILE es el máximo de archivos abiertos por proceso
	NOFILE = 16

	maxReintentosMarco = 128
)

// Estado es el estado de ciclo de vida de un slot de proceso
type Estado int

const (
	EstadoUnused Estado = iota
	EstadoEmbryo
	EstadoSleeping
	EstadoRunnable
	EstadoRunning
	EstadoZombie
)

var nombresEstado = [...]string{
	EstadoUnused:   "unused",
	EstadoEmbryo:   "embryo",
	EstadoSleeping: "sleep ",
	EstadoRunnable: "runble",
	EstadoRunning:  "run   ",
	EstadoZombie:   "zombie",
}

func (e Estado) String() string {
	if int(e) < len(nombresEstado) {
		return nombresEstado[e]
	}
	return "???"
}

// canalPid es el token de canal con el que duerme un proceso que espera su
// swap-in: su propio pid
type canalPid int

// Proc es un slot de la tabla de procesos. Los campos se tocan desde otra
// CPU solo con el lock de la tabla tomado; los contadores de la ráfaga son
// privados de la CPU que lo está corriendo.
type Proc struct {
	// identidad
	pid    int
	nombre string
	padre  *Proc

	estado Estado

	// memoria
	espacio *Espacio
	tam     int
	kstack  int // marco de la pila de kernel, -1 si no tiene

	// planificación
	prioridad   int // 1..3, 3 es la más alta
	ticksRafaga int // ticks consecutivos en RUNNING desde el último despacho
	ctime       int
	retime      int
	rutime      int
	stime       int

	// bloqueo
	canal  interface{}
	matado bool

	// E/S
	ofile [NOFILE]*Archivo
	cwd   *Inodo

	// swap
	satisfecho bool
	trapva     int

	// trampa y contexto
	trapframe *Trapframe
	contexto  *Contexto

	cpu       *CPU
	k         *Kernel
	programa  func(*Proc)
	esSistema bool
}

// Trapframe guarda el estado de usuario al entrar al kernel; AX lleva el
// valor de retorno de la syscall
type Trapframe struct {
	AX int
	IP int
	SP int
}

type tablaProcesos struct {
	lock  Spinlock
	procs [NPROC]Proc
}

// crearProceso busca un slot UNUSED, lo pasa a EMBRYO y lo deja listo para
// correr en el kernel. Devuelve nil si no hay slot o no hay marco para la
// pila. Cualquier falla posterior al EMBRYO vuelve el slot a UNUSED.
func (k *Kernel) crearProceso(c *CPU) *Proc {
	k.ptable.lock.Adquirir(c)

	var p *Proc
	for i := range k.ptable.procs {
		if k.ptable.procs[i].estado == EstadoUnused {
			p = &k.ptable.procs[i]
			break
		}
	}
	if p == nil {
		k.ptable.lock.Liberar(c)
		return nil
	}

	p.estado = EstadoEmbryo
	p.pid = k.proximoPID
	k.proximoPID++
	p.prioridad = 2
	p.ctime = k.ticks
	p.retime = 0
	p.rutime = 0
	p.stime = 0
	p.k = k

	k.ptable.lock.Liberar(c)

	// Pila de kernel
	marco, err := k.memoria.asignarMarco(p.pid)
	if err != nil {
		p.estado = EstadoUnused
		p.pid = 0
		return nil
	}
	p.kstack = marco

	// Trapframe arriba de la pila y contexto que arranca en forkret
	p.trapframe = &Trapframe{}
	p.contexto = nuevoContexto()
	go p.rutinaUsuario(p.contexto)

	return p
}

// rutinaUsuario es el cuerpo del hilo de kernel de un proceso de usuario:
// espera el primer despacho, pasa por forkret y "retorna a modo usuario"
// ejecutando su programa. Un programa que retorna termina en exit.
func (p *Proc) rutinaUsuario(ctx *Contexto) {
	// Un canal cerrado significa que el fork se deshizo antes del primer
	// despacho
	if _, ok := <-ctx.listo; !ok {
		return
	}
	p.k.forkret(p)
	if p.programa != nil {
		p.programa(p)
	}
	p.Exit()
}

// crearProcesoKernel crea un hilo de kernel (los demonios de swap) cuyo
// contexto arranca directamente en su punto de entrada, con el lock de la
// tabla todavía tomado por el planificador
func (k *Kernel) crearProcesoKernel(c *CPU, nombre string, entrada func(*Proc)) *Proc {
	k.ptable.lock.Adquirir(c)

	var p *Proc
	for i := range k.ptable.procs {
		if k.ptable.procs[i].estado == EstadoUnused {
			p = &k.ptable.procs[i]
			break
		}
	}
	if p == nil {
		k.ptable.lock.Liberar(c)
		return nil
	}

	p.estado = EstadoEmbryo
	p.pid = k.proximoPID
	k.proximoPID++
	p.prioridad = 2
	p.ctime = k.ticks
	p.retime = 0
	p.rutime = 0
	p.stime = 0
	p.k = k

	k.ptable.lock.Liberar(c)

	marco, err := k.memoria.asignarMarco(p.pid)
	if err != nil {
		p.estado = EstadoUnused
		p.pid = 0
		return nil
	}
	p.kstack = marco
	p.trapframe = &Trapframe{}
	p.contexto = nuevoContexto()
	p.espacio = nuevoEspacio(k.config.EntradasTLB)
	p.tam = 0
	p.padre = k.initProc
	if k.initProc != nil && k.initProc.cwd != nil {
		p.cwd = k.initProc.cwd.Dup()
	}
	p.nombre = nombre
	p.esSistema = true

	ctx := p.contexto
	go func() {
		<-ctx.listo
		entrada(p)
		p.Exit()
	}()

	k.ptable.lock.Adquirir(c)
	p.estado = EstadoRunnable
	k.ptable.lock.Liberar(c)

	utils.InfoLog.Info(fmt.Sprintf("(%d) - Se crea el proceso de kernel %s", p.pid, nombre))
	return p
}

// fdalloc busca un descriptor libre para f en la tabla del proceso
func (p *Proc) fdalloc(f *Archivo) int {
	for fd := 0; fd < NOFILE; fd++ {
		if p.ofile[fd] == nil {
			p.ofile[fd] = f
			return fd
		}
	}
	return -1
}

// InfoProceso es la foto de un slot para el monitor y el volcado de consola
type InfoProceso struct {
	PID       int    `json:"pid"`
	Nombre    string `json:"nombre"`
	Estado    string `json:"estado"`
	Prioridad int    `json:"prioridad"`
	CTime     int    `json:"ctime"`
	ReTime    int    `json:"retime"`
	RuTime    int    `json:"rutime"`
	STime     int    `json:"stime"`
}

// Procesos devuelve una foto de los slots ocupados. Igual que el volcado de
// consola, no toma el lock para no trabar más una máquina trabada.
func (k *Kernel) Procesos() []InfoProceso {
	resultado := make([]InfoProceso, 0, NPROC)
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.estado == EstadoUnused {
			continue
		}
		resultado = append(resultado, InfoProceso{
			PID:       p.pid,
			Nombre:    p.nombre,
			Estado:    strings.TrimSpace(p.estado.String()),
			Prioridad: p.prioridad,
			CTime:     p.ctime,
			ReTime:    p.retime,
			RuTime:    p.rutime,
			STime:     p.stime,
		})
	}
	return resultado
}

// VolcarProcesos arma el listado de consola: pid, estado, nombre y, para los
// que duermen, hasta diez PCs de la pila guardada al ceder la CPU
func (k *Kernel) VolcarProcesos() string {
	var b strings.Builder
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.estado == EstadoUnused {
			continue
		}
		fmt.Fprintf(&b, "%d %s %s", p.pid, p.estado, p.nombre)
		if p.estado == EstadoSleeping && p.contexto != nil {
			for _, pc := range p.contexto.pcs {
				if pc == 0 {
					break
				}
				if fn := runtime.FuncForPC(pc); fn != nil {
					fmt.Fprintf(&b, " %#x:%s", pc, fn.Name())
				} else {
					fmt.Fprintf(&b, " %#x", pc)
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Prioridad lee la prioridad del propio proceso bajo el lock de la tabla
func (p *Proc) Prioridad() int {
	k := p.k
	k.ptable.lock.Adquirir(p.cpu)
	prio := p.prioridad
	k.ptable.lock.Liberar(p.cpu)
	return prio
}

// Getpid devuelve el pid del proceso
func (p *Proc) Getpid() int {
	return p.syscall(SysGetpid, nil)
}
